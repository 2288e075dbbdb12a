package trajectory

import (
	"bufio"
	"encoding/json"
	"io"
	"time"
)

// AppendToLog serializes m as one JSON line, the on-disk trajectory log
// format `resume` reads back via LoadFromJSONL.
func AppendToLog(w io.Writer, m ActionMetric) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// LoadFromJSONL reconstructs a Tracker by replaying every ActionMetric
// line in r through Record, in order. Used by the `resume` subcommand
// to rebuild a Snapshot from a trajectory log path.
func LoadFromJSONL(r io.Reader, windowSize time.Duration) (*Tracker, error) {
	t := New(windowSize)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m ActionMetric
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, err
		}
		t.Record(m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}
