package core

import (
	"fmt"
	"os"

	"github.com/zjkmxy/pktsched/std/log"
)

var Log = log.Default()
var logFileObj *os.File

// OpenLogger initializes the logger from C.
func OpenLogger() error {
	if C.Core.LogFile == "" {
		logFileObj = os.Stderr
	} else {
		var err error
		logFileObj, err = os.Create(C.ResolveRelPath(C.Core.LogFile))
		if err != nil {
			return fmt.Errorf("unable to open log file: %w", err)
		}
	}

	level, err := log.ParseLevel(C.Core.LogLevel)
	if err != nil {
		return err
	}

	if C.Core.LogJson {
		Log = log.NewJson(logFileObj)
	} else {
		Log = log.NewText(logFileObj)
	}
	Log.SetLevel(level)
	return nil
}

// CloseLogger closes the log file, if any.
func CloseLogger() {
	if logFileObj != nil && logFileObj != os.Stderr {
		logFileObj.Close()
	}
	logFileObj = nil
}
