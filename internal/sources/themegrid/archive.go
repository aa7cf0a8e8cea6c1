package themegrid

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ArchiveEvent is one historical observation from the archive feed.
// Status is the raw upstream string; wait may be absent.
type ArchiveEvent struct {
	EntityID    string     `json:"entityId"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	WaitMinutes *int       `json:"waitTime"`
	Timestamp   time.Time  `json:"timestamp"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// ArchiveFile identifies one day file in the archive listing.
type ArchiveFile struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

// ListArchiveFiles returns the archive day files for a destination,
// oldest first. The feed guarantees the listing is date-ordered.
func (c *Client) ListArchiveFiles(ctx context.Context, destinationUUID string) ([]ArchiveFile, error) {
	url := fmt.Sprintf("%s/archive/%s/files", c.baseURL, destinationUUID)

	var files []ArchiveFile
	if err := c.transport.GetJSON(ctx, url, &files); err != nil {
		return nil, fmt.Errorf("failed to list archive files: %w", err)
	}
	return files, nil
}

// StreamArchive fetches one gzip-compressed archive day file and invokes
// fn for each event. The decoded payload may be framed either as a bare
// array or as an object with an "events" array; both occur in the wild.
// Decoding is streamed so a day file never has to fit in memory.
//
// A record that is valid JSON but does not fit the event shape is
// reported through bad (which may be nil) and skipped; only a broken
// stream fails the whole file.
func (c *Client) StreamArchive(ctx context.Context, destinationUUID, fileName string, fn func(ArchiveEvent) error, bad func(json.RawMessage, error)) error {
	url := fmt.Sprintf("%s/archive/%s/%s", c.baseURL, destinationUUID, fileName)

	body, err := c.transport.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch archive file %s: %w", fileName, err)
	}
	defer body.Close()

	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream for %s: %w", fileName, err)
	}
	defer gz.Close()

	return decodeArchive(gz, fn, bad)
}

// decodeArchive walks the JSON token stream, handling both framings.
func decodeArchive(r io.Reader, fn func(ArchiveEvent) error, bad func(json.RawMessage, error)) error {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read archive framing: %w", err)
	}

	switch delim := tok.(type) {
	case json.Delim:
		switch delim {
		case '[':
			return decodeEvents(dec, fn, bad)
		case '{':
			// Object framing: scan keys until "events", decode its
			// array, then drain the rest of the object.
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return fmt.Errorf("failed to read archive key: %w", err)
				}
				key, _ := keyTok.(string)
				if key == "events" {
					if tok, err := dec.Token(); err != nil {
						return fmt.Errorf("failed to open events array: %w", err)
					} else if tok != json.Delim('[') {
						return fmt.Errorf("archive events key is not an array")
					}
					if err := decodeEvents(dec, fn, bad); err != nil {
						return err
					}
					continue
				}
				var skip json.RawMessage
				if err := dec.Decode(&skip); err != nil {
					return fmt.Errorf("failed to skip archive key %q: %w", key, err)
				}
			}
			return nil
		}
	}

	return fmt.Errorf("unrecognized archive framing, got token %v", tok)
}

// decodeEvents reads array elements one at a time. Each element is
// captured raw first, so a record with mismatched field types is skipped
// without losing the rest of the file; a syntax error in the stream
// itself still aborts.
func decodeEvents(dec *json.Decoder, fn func(ArchiveEvent) error, bad func(json.RawMessage, error)) error {
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to read archive event: %w", err)
		}
		var ev ArchiveEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			if bad != nil {
				bad(raw, err)
			}
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
	// Consume the closing bracket.
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to close events array: %w", err)
	}
	return nil
}
