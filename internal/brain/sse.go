package brain

import (
	"bufio"
	"io"
	"strings"
)

// frame is one blank-line-delimited SSE frame: an optional event name plus
// the joined payload from its data: lines.
type frame struct {
	event string
	data  string
}

// consumeSSE is grounded on the teacher's consumeSSE (sdk/llm/anthropic/client.go),
// generalized to also track the event: discriminator and to tolerate
// `:`-prefixed keep-alive comments, per §4.2 and §9's "SSE decoder reentry"
// note. It buffers at the line level via bufio.Scanner, which itself buffers
// at the byte level and never assumes a frame boundary arrives in a single
// read.
func consumeSSE(r io.Reader, onFrame func(frame) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var dataLines []string
	var eventName string

	flush := func() error {
		if len(dataLines) == 0 && eventName == "" {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		name := eventName
		dataLines = nil
		eventName = ""
		if data == "" {
			return nil
		}
		return onFrame(frame{event: name, data: data})
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := flush(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment; ignored.
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// other lines (id:, retry:) are ignored per §4.2.
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return flush()
}
