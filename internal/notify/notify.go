// Package notify is the voice collaborator client: fire-and-forget speech
// for successfully auto-applied effects. Failures are logged and swallowed;
// nothing in the core ever waits on a notification.
package notify

import (
	"log"
	"os/exec"
	"runtime"
)

// #region voice

// Voice speaks through a local text-to-speech command.
type Voice struct {
	command string
}

// NewVoice picks the platform speech command. Pass command to override.
func NewVoice(command string) *Voice {
	if command == "" {
		if runtime.GOOS == "darwin" {
			command = "say"
		} else {
			command = "espeak"
		}
	}
	return &Voice{command: command}
}

// Speak utters text asynchronously.
func (v *Voice) Speak(text string) {
	go func() {
		if out, err := exec.Command(v.command, text).CombinedOutput(); err != nil {
			log.Printf("[NOTIFY] %s failed: %v (%s)", v.command, err, out)
		}
	}()
}

// #endregion voice
