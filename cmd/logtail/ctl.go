package main

import (
	"fmt"
	"io"

	"github.com/keepwatching/logtail/internal/logstream"
	"github.com/keepwatching/logtail/internal/socketrpc"
)

var ctlActions = []string{"status", "pause", "resume", "clear", "reconnect"}

// runCtl sends one control action to a running daemon and prints the
// resulting consumer status.
func runCtl(out io.Writer, socketPath, action string) error {
	client, err := socketrpc.Dial(socketPath)
	if err != nil {
		return fmt.Errorf("cannot connect to logtail at %s: %w\nIs logtail running? Start it with: logtail run", socketPath, err)
	}
	defer client.Close()

	var call func() (logstream.Status, error)
	switch action {
	case "status":
		call = client.Status
	case "pause":
		call = client.Pause
	case "resume":
		call = client.Resume
	case "clear":
		call = client.Clear
	case "reconnect":
		call = client.Reconnect
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	st, err := call()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	printStatus(out, st)
	return nil
}

func printStatus(out io.Writer, st logstream.Status) {
	fmt.Fprintf(out, "State:    %s\n", st.State)
	if st.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", st.Error)
	}
	fmt.Fprintf(out, "URL:      %s\n", st.URL)
	fmt.Fprintf(out, "Paused:   %t\n", st.Paused)
	fmt.Fprintf(out, "Visible:  %d/%d\n", st.Visible, st.Max)
	fmt.Fprintf(out, "Pending:  %d\n", st.Pending)
}
