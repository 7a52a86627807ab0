// Package customize loads the flat customize.json payload and applies it to
// the named slots of the stage before the greeting starts.
package customize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/ivlev/greetcard/internal/logging"
	"github.com/ivlev/greetcard/internal/stage"
)

// ImageSlot is the reserved key whose value replaces the src attribute of the
// slot instead of its text.
const ImageSlot = "imagePath"

// maxPayload bounds the size of a fetched payload.
const maxPayload = 1 << 20

// Payload maps slot ids to values. Empty values mean "keep the default".
type Payload map[string]string

// Load reads the payload from an http(s) URL or a file path.
func Load(ctx context.Context, location string, client *http.Client) (Payload, error) {
	var data []byte
	var err error
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = fetch(ctx, location, client)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", location, err)
	}

	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", location, err)
	}
	return p, nil
}

func fetch(ctx context.Context, url string, client *http.Client) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPayload))
}

// Apply writes every non-empty entry onto the slot with the matching id:
// the image slot gets its src attribute, every other slot its text. Missing
// slots are skipped. It returns the number of slots changed.
func Apply(st *stage.Stage, p Payload, log *logging.Logger) int {
	if log == nil {
		log = logging.Nop()
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	applied := 0
	for _, key := range keys {
		value := p[key]
		if value == "" {
			continue
		}
		node := st.ByID(key)
		if node == nil {
			log.Debug("no slot for customization", "slot", key)
			continue
		}
		if key == ImageSlot {
			st.SetAttr(node, "src", value)
		} else {
			st.SetText(node, value)
		}
		applied++
	}
	return applied
}
