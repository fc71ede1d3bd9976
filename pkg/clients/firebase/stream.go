package firebase

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const reconnectDelay = time.Second

// Subscribe follows the REST streaming endpoint. The first "put" event
// carries the whole collection, which provides the initial onChange call.
// A dropped stream is reopened and reported as a change.
func (c *clientImpl) Subscribe(ctx context.Context, path string, onChange func()) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			err := c.stream(ctx, path, onChange)
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("stream closed, reconnecting", zap.String("path", path), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (c *clientImpl) stream(ctx context.Context, path string, onChange func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path, nil), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error opening stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("error from Realtime Database stream: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case line == "":
			switch event {
			case "put", "patch":
				onChange()
			case "cancel", "auth_revoked":
				return fmt.Errorf("stream %s", event)
			}
			event = ""
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return fmt.Errorf("stream ended")
}
