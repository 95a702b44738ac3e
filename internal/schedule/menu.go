package schedule

import (
	"fmt"

	"github.com/hirojw/hirobot/internal/bus"
)

// previewCut is where long messages are truncated in list buttons.
const previewCut = 38

// preview returns the button label text for a message body: messages over
// 40 runes are cut at 38 and ellipsized.
func preview(message string) string {
	runes := []rune(message)
	if len(runes) <= previewCut+2 {
		return message
	}
	return string(runes[:previewCut]) + "…"
}

// ListKeyboard renders one button per entry plus a refresh row.
func ListKeyboard(entries []Entry) [][]bus.Button {
	rows := make([][]bus.Button, 0, len(entries)+1)
	for i, e := range entries {
		rows = append(rows, []bus.Button{{
			Label: fmt.Sprintf("%d. %s — %s", i+1, e.Time.Format("02 Jan 3:04PM"), preview(e.Message)),
			Data:  "view:" + e.ID,
		}})
	}
	rows = append(rows, []bus.Button{{Label: "🔄 Refresh", Data: "list:refresh"}})
	return rows
}

// ListText is the text shown above the list keyboard.
func ListText(entries []Entry) string {
	if len(entries) == 0 {
		return "🗓 No scheduled messages right now."
	}
	return fmt.Sprintf("🗓 %d scheduled message(s). Pick one:", len(entries))
}

// DetailText renders the full view of one entry.
func DetailText(e Entry) string {
	return fmt.Sprintf("🗓 Scheduled for %s:\n\n%s", RenderTime(e.Time), e.Message)
}

// DetailKeyboard renders the per-entry action menu.
func DetailKeyboard(e Entry) [][]bus.Button {
	return [][]bus.Button{
		{
			{Label: "⏰ Edit time", Data: "edit_time:" + e.ID},
			{Label: "✏️ Edit message", Data: "edit_msg:" + e.ID},
		},
		{
			{Label: "🗑 Delete", Data: "delete:" + e.ID},
			{Label: "⬅️ Back", Data: "list:back"},
		},
	}
}
