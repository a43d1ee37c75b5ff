package helper

import (
	"github.com/united-manufacturing-hub/umh-utils/logger"
)

func InitTestLogging() {
	_ = logger.New("DEVELOPMENT")
}
