package process

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// ExitStatus describes how a child ended. Code is -1 when the child was
// terminated by a signal or never produced an exit code.
type ExitStatus struct {
	Code     int       `json:"code"`
	Signal   string    `json:"signal,omitempty"`
	Err      error     `json:"-"`
	ExitedAt time.Time `json:"exited_at"`
}

// Success reports a zero exit code.
func (e ExitStatus) Success() bool { return e.Code == 0 && e.Signal == "" && e.Err == nil }

func (e ExitStatus) String() string {
	switch {
	case e.Signal != "":
		return "signal: " + e.Signal
	case e.Code >= 0:
		return "exit code " + strconv.Itoa(e.Code)
	case e.Err != nil:
		return e.Err.Error()
	}
	return "unknown"
}

// exitStatusFrom converts the result of cmd.Wait.
func exitStatusFrom(err error) ExitStatus {
	st := ExitStatus{ExitedAt: time.Now()}
	if err == nil {
		return st
	}
	var ee *exec.ExitError
	if !errors.As(err, &ee) {
		st.Code = -1
		st.Err = err
		return st
	}
	st.Code = ee.ExitCode()
	if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		st.Signal = ws.Signal().String()
	}
	return st
}
