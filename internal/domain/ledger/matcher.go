package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// DefaultMatchWindowDays is how far apart a bank line and book item may be dated
// and still match on amount alone
const DefaultMatchWindowDays = 3

// BookItem is a journal line on the bank account seen from the bank's side:
// debits (deposits) are positive, credits (checks, transfers out) negative
type BookItem struct {
	EntryID   uuid.UUID         `json:"entry_id"`
	Reference string            `json:"reference"`
	Amount    valueobject.Money `json:"amount"`
	Date      time.Time         `json:"date"`
}

// Match pairs one bank line with one book item
type Match struct {
	BankLineIndex int      `json:"bank_line_index"`
	Book          BookItem `json:"book"`
	Exact         bool     `json:"exact"`
	DaysApart     int      `json:"days_apart"`
}

// MatchResult lists matches and what is left on either side. UnmatchedBank holds
// indexes into the bank lines passed to Match.
type MatchResult struct {
	Matches       []Match    `json:"matches"`
	UnmatchedBank []int      `json:"unmatched_bank"`
	UnmatchedBook []BookItem `json:"unmatched_book"`
}

// Matcher pairs bank statement lines with book items in two passes. The first pass
// requires equal amount and date. The second accepts equal amounts dated within
// DateWindow days, preferring the closest date and then the earliest book item.
// Every line and item is used at most once.
type Matcher struct {
	DateWindow int
}

func NewMatcher(windowDays int) Matcher {
	if windowDays < 0 {
		windowDays = DefaultMatchWindowDays
	}
	return Matcher{DateWindow: windowDays}
}

// Match runs both passes. Bank lines already carrying a match are skipped.
func (m Matcher) Match(lines []BankLine, book []BookItem) MatchResult {
	usedBook := make([]bool, len(book))
	matched := make([]bool, len(lines))
	var res MatchResult

	for i, l := range lines {
		if l.IsMatched() {
			matched[i] = true
			continue
		}
		for j, b := range book {
			if usedBook[j] || !b.Amount.Equals(l.Amount) || DaysBetween(l.Date, b.Date) != 0 {
				continue
			}
			usedBook[j], matched[i] = true, true
			res.Matches = append(res.Matches, Match{BankLineIndex: i, Book: b, Exact: true})
			break
		}
	}

	for i, l := range lines {
		if matched[i] {
			continue
		}
		best, bestDays := -1, 0
		for j, b := range book {
			if usedBook[j] || !b.Amount.Equals(l.Amount) {
				continue
			}
			days := absInt(DaysBetween(l.Date, b.Date))
			if days > m.DateWindow {
				continue
			}
			if best < 0 || days < bestDays || (days == bestDays && b.Date.Before(book[best].Date)) {
				best, bestDays = j, days
			}
		}
		if best < 0 {
			res.UnmatchedBank = append(res.UnmatchedBank, i)
			continue
		}
		usedBook[best], matched[i] = true, true
		res.Matches = append(res.Matches, Match{BankLineIndex: i, Book: book[best], DaysApart: bestDays})
	}

	for j, b := range book {
		if !usedBook[j] {
			res.UnmatchedBook = append(res.UnmatchedBook, b)
		}
	}
	return res
}
