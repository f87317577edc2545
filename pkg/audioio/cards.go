package audioio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCardsPath is the kernel's ALSA card listing.
const DefaultCardsPath = "/proc/asound/cards"

// Card is one entry of /proc/asound/cards.
type Card struct {
	Index       int
	ID          string
	Name        string
	Description string // second line of the entry
}

// Cards is the result of a hardware scan.
type Cards struct {
	All     []Card
	Mic     int // -1 when none found
	Speaker int // -1 when none found
}

// Found reports whether both a microphone and a speaker were located.
func (c Cards) Found() bool {
	return c.Mic >= 0 && c.Speaker >= 0
}

// Onboard audio controllers that never carry the USB mic or speaker.
var skipCards = []string{"tegra", "hda", "ape", "nvidia"}

var cardLine = regexp.MustCompile(`^\s*(\d+)\s+\[([^\]]+)\]\s*:\s*(.*)$`)

// DetectCards scans the ALSA card list at path.
// A webcam microphone is preferred for capture and the first usable card
// is used for playback. Either role falls back to the other's card.
func DetectCards(path string) (Cards, error) {
	if path == "" {
		path = DefaultCardsPath
	}
	f, err := os.Open(path)
	if err != nil {
		return Cards{Mic: -1, Speaker: -1}, fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	defer f.Close()
	return ParseCards(f)
}

// ParseCards parses /proc/asound/cards content.
func ParseCards(r io.Reader) (Cards, error) {
	out := Cards{Mic: -1, Speaker: -1}

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}

	for i, line := range lines {
		m := cardLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		card := Card{Index: idx, ID: strings.TrimSpace(m[2]), Name: strings.TrimSpace(m[3])}
		if i+1 < len(lines) && cardLine.FindStringSubmatch(lines[i+1]) == nil {
			card.Description = strings.TrimSpace(lines[i+1])
		}
		if isOnboard(card) {
			continue
		}
		out.All = append(out.All, card)

		if isWebcam(card) {
			out.Mic = card.Index
		}
		if out.Speaker < 0 {
			out.Speaker = card.Index
		}
	}

	if out.Mic < 0 {
		out.Mic = out.Speaker
	}
	if out.Speaker < 0 {
		out.Speaker = out.Mic
	}
	if !out.Found() {
		return out, ErrNoDevice
	}
	return out, nil
}

func (c Card) text() string {
	return strings.ToLower(c.ID + " " + c.Name + " " + c.Description)
}

func isOnboard(c Card) bool {
	lower := c.text()
	for _, s := range skipCards {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func isWebcam(c Card) bool {
	return strings.Contains(c.text(), "webcam")
}
