package keymap

import tea "github.com/charmbracelet/bubbletea"

// DefaultKeymap returns the built-in bindings.
func DefaultKeymap() *Keymap {
	return &Keymap{
		Name: "default",
		Bindings: []KeyBinding{
			{KeyType: tea.KeyTab, Command: CmdNextChat, Description: "next chat", Category: "Navigation"},
			{KeyType: tea.KeyShiftTab, Command: CmdPrevChat, Description: "previous chat", Category: "Navigation"},
			{KeyType: tea.KeyPgUp, Command: CmdPageUp, Description: "history previous page", Category: "Navigation"},
			{KeyType: tea.KeyPgDown, Command: CmdPageDown, Description: "history next page", Category: "Navigation"},
			{KeyType: tea.KeyCtrlE, Command: CmdToggleEmoji, Description: "toggle emoji", Category: "View"},
			{KeyType: tea.KeyCtrlN, Command: CmdToggleMsgIDs, Description: "toggle show message ids", Category: "View"},
			{KeyType: tea.KeyCtrlQ, Command: CmdQuit, Description: "quit", Category: "Session"},
			{KeyType: tea.KeyCtrlC, Command: CmdQuit, Description: "quit", Category: "Session"},
			{KeyType: tea.KeyCtrlR, Command: CmdReceiveFile, Description: "receive file", Category: "Messages"},
			{KeyType: tea.KeyCtrlT, Command: CmdSendFile, Description: "transfer file", Category: "Messages"},
			{KeyType: tea.KeyCtrlU, Command: CmdNextUnread, Description: "next unread chat", Category: "Navigation"},
			{KeyType: tea.KeyCtrlX, Command: CmdSend, Description: "send message", Category: "Messages"},
			{KeyType: tea.KeyEnter, Command: CmdSend, Description: "send message", Category: "Messages"},
		},
	}
}
