package handlers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/amabot/internal/config"
	"github.com/edgard/amabot/internal/winners"
)

const callbackPrefix = "winners:"

// Winner-flow button actions.
const (
	actionDiscard   = "discard"
	actionReset     = "reset"
	actionConfirm   = "confirm"
	actionCancel    = "cancel"
	actionBroadcast = "broadcast"
	actionSchedule  = "schedule"
)

var (
	errInvalidCallback = errors.New("invalid callback data")

	callbackPattern = regexp.MustCompile(`^winners:(discard|reset|confirm|cancel|broadcast|schedule):(\d+)(?::(\d+))?$`)
)

// callbackData is the payload of a winner-flow button:
// winners:<action>:<ama_id>[:<user_id>]. Only discard carries a user.
type callbackData struct {
	Action string
	AMAID  int64
	UserID int64
}

func (c callbackData) String() string {
	if c.Action == actionDiscard {
		return fmt.Sprintf("%s%s:%d:%d", callbackPrefix, c.Action, c.AMAID, c.UserID)
	}
	return fmt.Sprintf("%s%s:%d", callbackPrefix, c.Action, c.AMAID)
}

func parseCallbackData(data string) (callbackData, error) {
	m := callbackPattern.FindStringSubmatch(data)
	if m == nil {
		return callbackData{}, fmt.Errorf("%w: %q", errInvalidCallback, data)
	}
	c := callbackData{Action: m[1]}

	var err error
	if c.AMAID, err = strconv.ParseInt(m[2], 10, 64); err != nil || c.AMAID <= 0 {
		return callbackData{}, fmt.Errorf("%w: ama id %q", errInvalidCallback, m[2])
	}

	switch {
	case c.Action == actionDiscard && m[3] == "":
		return callbackData{}, fmt.Errorf("%w: discard without user", errInvalidCallback)
	case c.Action != actionDiscard && m[3] != "":
		return callbackData{}, fmt.Errorf("%w: %s takes no user", errInvalidCallback, c.Action)
	case m[3] != "":
		if c.UserID, err = strconv.ParseInt(m[3], 10, 64); err != nil || c.UserID <= 0 {
			return callbackData{}, fmt.Errorf("%w: user id %q", errInvalidCallback, m[3])
		}
	}
	return c, nil
}

func shortlistText(msgs config.MessagesConfig, list *winners.Shortlist) string {
	return fmt.Sprintf(msgs.ShortlistHeaderFmt,
		list.AMA.SessionNo, list.AMA.Language, len(list.Entries), list.Eligible, list.WinnerCount())
}

// shortlistKeyboard has one discard row per entry and the confirm, reset and
// cancel controls underneath. Reset only shows once something was discarded.
func shortlistKeyboard(list *winners.Shortlist) *models.InlineKeyboardMarkup {
	amaID := list.AMA.ID
	rows := make([][]models.InlineKeyboardButton, 0, len(list.Entries)+1)

	for i, e := range list.Entries {
		row := []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("❌ %d. %s (%d)", i+1, winners.DisplayName(e.Username, e.UserID), e.Score),
			CallbackData: callbackData{Action: actionDiscard, AMAID: amaID, UserID: e.UserID}.String(),
		}}
		if e.Username != "" {
			row = append(row, models.InlineKeyboardButton{
				Text: "👤",
				URL:  "https://t.me/" + strings.TrimPrefix(e.Username, "@"),
			})
		}
		rows = append(rows, row)
	}

	controls := []models.InlineKeyboardButton{
		{Text: "✅ Confirm", CallbackData: callbackData{Action: actionConfirm, AMAID: amaID}.String()},
	}
	if list.Discarded > 0 {
		controls = append(controls, models.InlineKeyboardButton{
			Text: "↩️ Reset", CallbackData: callbackData{Action: actionReset, AMAID: amaID}.String(),
		})
	}
	controls = append(controls, models.InlineKeyboardButton{
		Text: "✖️ Cancel", CallbackData: callbackData{Action: actionCancel, AMAID: amaID}.String(),
	})
	rows = append(rows, controls)

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func broadcastKeyboard(amaID int64) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{
		{Text: "📣 Announce now", CallbackData: callbackData{Action: actionBroadcast, AMAID: amaID}.String()},
		{Text: "🕒 Schedule", CallbackData: callbackData{Action: actionSchedule, AMAID: amaID}.String()},
	}}}
}

func emptyKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{}}
}

// layoutHint spells a Go time layout the way people write it.
func layoutHint(layout string) string {
	return strings.NewReplacer(
		"2006", "YYYY", "01", "MM", "02", "DD", "15", "HH", "04", "mm", "05", "ss",
	).Replace(layout)
}
