package room

import "ludoarena/internal/session"

// The methods below are the externally callable entry points the transport
// dispatcher uses to feed a decoded inbound event into this room's mailbox.
// They never block on room-internal work; Seat and Reconnect are the two
// exceptions that wait for an outcome the caller must report to the client.

func (r *Room) DiceSend(senderUID string, p DicePayload) {
	r.inbox <- event{kind: evDiceSend, senderUID: senderUID, dice: p}
}

func (r *Room) TokenSend(senderUID string, p TokenPayload) {
	r.inbox <- event{kind: evTokenSend, senderUID: senderUID, token: p}
}

func (r *Room) TokenReset(senderUID string, p TokenPayload) {
	r.inbox <- event{kind: evTokenReset, senderUID: senderUID, token: p}
}

func (r *Room) ChangeTurn(senderUID string) {
	r.inbox <- event{kind: evChangeTurn, senderUID: senderUID}
}

func (r *Room) WinGame(senderUID string, p WinPayload) {
	r.inbox <- event{kind: evWinGame, senderUID: senderUID, win: p}
}

func (r *Room) LeaveRoom(senderUID string) {
	r.inbox <- event{kind: evLeaveRoom, senderUID: senderUID}
}

func (r *Room) Chat(senderUID string, p ChatPayload) {
	r.inbox <- event{kind: evChat, senderUID: senderUID, chat: p}
}

func (r *Room) Emoji(senderUID string, p EmojiPayload) {
	r.inbox <- event{kind: evEmoji, senderUID: senderUID, emoji: p}
}

func (r *Room) Gift(senderUID string, p GiftPayload) {
	r.inbox <- event{kind: evGift, senderUID: senderUID, gift: p}
}

// Reconnect rebinds userID's transport handle and reports whether the user
// held a seat in this room.
func (r *Room) Reconnect(userID string, handle session.Handle) bool {
	done := make(chan bool, 1)
	r.inbox <- event{kind: evReconnect, reconnect: &reconnectRequest{userID: userID, handle: handle, done: done}}
	return <-done
}
