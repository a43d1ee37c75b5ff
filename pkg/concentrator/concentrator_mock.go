package concentrator

import (
	"sync"
	"testing"

	"github.com/united-manufacturing-hub/lora-packet-logger/pkg/datamodel"
)

// MockClient is a scripted concentrator for tests. Receive hands out the
// queued batches one per call; once they are exhausted it returns
// ExhaustedErr if set, otherwise an empty poll.
type MockClient struct {
	mu sync.Mutex

	Batches      [][]datamodel.RXPacket
	ExhaustedErr error
	StartErr     error
	StopErr      error
	SendErr      error
	StatusSeq    []datamodel.TXStatus // popped per TXStatus call; empty means TXFree

	Started      bool
	StartCalls   int
	StopCalls    int
	ReceiveCalls int
	Sent         []datamodel.TXPacket
}

func (c *MockClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StartCalls++
	if c.StartErr != nil {
		return c.StartErr
	}
	c.Started = true
	return nil
}

func (c *MockClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StopCalls++
	if c.StopErr != nil {
		return c.StopErr
	}
	c.Started = false
	return nil
}

func (c *MockClient) Receive(max int) ([]datamodel.RXPacket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ReceiveCalls++
	if len(c.Batches) == 0 {
		return nil, c.ExhaustedErr
	}
	batch := c.Batches[0]
	c.Batches = c.Batches[1:]
	if len(batch) > max {
		batch = batch[:max]
	}
	return batch, nil
}

func (c *MockClient) Send(pkt datamodel.TXPacket) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SendErr != nil {
		return c.SendErr
	}
	c.Sent = append(c.Sent, pkt)
	return nil
}

func (c *MockClient) TXStatus() (datamodel.TXStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.StatusSeq) == 0 {
		return datamodel.TXFree, nil
	}
	status := c.StatusSeq[0]
	c.StatusSeq = c.StatusSeq[1:]
	return status, nil
}

func GetMockClient(t *testing.T) *MockClient {
	// Passing t here to ensure it is not used in production code
	t.Logf("Using mock concentrator")
	return &MockClient{}
}
