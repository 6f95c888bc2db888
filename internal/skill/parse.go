package skill

import (
	"errors"
	"strconv"
	"strings"

	"github.com/MrWong99/voxbridge/internal/fault"
	"github.com/MrWong99/voxbridge/internal/inventory"
)

var (
	// ErrAddFormat is returned when an add command lacks the "add" or "to"
	// marker or has nothing after "add".
	ErrAddFormat = errors.New("skill: add command needs 'add <quantity> <item> to'")

	// ErrNoItem is returned when an add command names no item.
	ErrNoItem = errors.New("skill: add command names no item")

	// ErrQuantityTooLarge is returned for digit quantities above
	// inventory.MaxQuantity.
	ErrQuantityTooLarge = errors.New("skill: add quantity too large")
)

// AllItems is the query fragment that lists the whole inventory.
const AllItems = "all"

var quantityWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// AddCommand is a parsed "add <quantity> <item> to ..." request.
type AddCommand struct {
	Quantity int
	Item     string
}

// ParseAdd extracts quantity and item name from an add command. The quantity
// is the word right after "add": a number word up to ten or a positive digit
// string, anything else counts as 1. The item is every word between the
// quantity and the first following "to". Failures are fault.KindParse errors
// wrapping [ErrAddFormat], [ErrNoItem] or [ErrQuantityTooLarge].
func ParseAdd(transcript string) (AddCommand, error) {
	words := normalizedWords(transcript)
	a := indexOf(words, "add", 0)
	if a < 0 || a+1 >= len(words) {
		return AddCommand{}, fault.Parse("parse add", ErrAddFormat)
	}
	t := indexOf(words, "to", a+1)
	if t < 0 {
		return AddCommand{}, fault.Parse("parse add", ErrAddFormat)
	}
	if t <= a+2 {
		return AddCommand{}, fault.Parse("parse add", ErrNoItem)
	}
	qty, err := parseQuantity(words[a+1])
	if err != nil {
		return AddCommand{}, fault.Parse("parse add", err)
	}
	return AddCommand{
		Quantity: qty,
		Item:     strings.Join(words[a+2:t], " "),
	}, nil
}

func parseQuantity(w string) (int, error) {
	if n, ok := quantityWords[w]; ok {
		return n, nil
	}
	if !isDigits(w) {
		return 1, nil
	}
	n, err := strconv.Atoi(w)
	switch {
	case err != nil && errors.Is(err, strconv.ErrRange), err == nil && n > inventory.MaxQuantity:
		return 0, ErrQuantityTooLarge
	case err != nil || n <= 0:
		return 1, nil
	}
	return n, nil
}

// ParseQuery returns the item fragment after "inventory for ", or [AllItems]
// when the transcript names none (or names "all").
func ParseQuery(transcript string) string {
	lower := strings.ToLower(transcript)
	_, after, ok := strings.Cut(lower, "inventory for ")
	if !ok {
		return AllItems
	}
	item := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(after), trimPunct))
	if item == "" {
		return AllItems
	}
	return item
}

const trimPunct = ".,!?;:\"'"

// normalizedWords lowercases transcript, splits it on whitespace and strips
// punctuation that recognizers attach to words.
func normalizedWords(transcript string) []string {
	fields := strings.Fields(strings.ToLower(transcript))
	out := fields[:0]
	for _, f := range fields {
		if w := strings.Trim(f, trimPunct); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func indexOf(words []string, w string, from int) int {
	for i := from; i < len(words); i++ {
		if words[i] == w {
			return i
		}
	}
	return -1
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
