package logging

import (
	"fmt"
	"os"
	"time"
)

// Log lines go through a buffered channel so hot paths never block on I/O.
// When the buffer is full the line is dropped.

type logMessage struct {
	message string
	json    bool
}

var logChan chan logMessage

func StartLogger() {
	logChan = make(chan logMessage, 1000)

	go func() {
		for msg := range logChan {
			if msg.json {
				fmt.Println(msg.message)
			} else {
				fmt.Fprintln(os.Stderr, msg.message)
			}
		}
	}()
}

func emit(level, format string, args ...interface{}) {
	if logChan == nil {
		return
	}
	line := fmt.Sprintf("%s %s: %s", time.Now().Format("15:04:05.000"), level, fmt.Sprintf(format, args...))
	select {
	case logChan <- logMessage{message: line}:
	default:
	}
}

func Infof(format string, args ...interface{}) {
	emit("INFO", format, args...)
}

func Successf(format string, args ...interface{}) {
	emit("SUCCESS", format, args...)
}

func Warnf(format string, args ...interface{}) {
	emit("WARNING", format, args...)
}

func Errorf(format string, args ...interface{}) {
	emit("ERROR", format, args...)
}

// JSON writes a line of machine-readable output to stdout, bypassing level
// formatting so it can be piped.
func JSON(jsonStr string) {
	if logChan == nil {
		return
	}
	select {
	case logChan <- logMessage{message: jsonStr, json: true}:
	default:
	}
}
