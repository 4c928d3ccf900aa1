package transport

import (
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/groupscribe/groupscribe/internal/bus"
)

// eventHandler translates WhatsApp events into bus envelopes. Only three
// things matter to the core: the bot being added to a group, the bot
// being removed, and member messages.
func (w *WhatsApp) eventHandler(evt interface{}) {
	switch v := evt.(type) {
	case *events.JoinedGroup:
		w.publishJoin(&v.GroupInfo, v.Sender)
	case *events.GroupInfo:
		w.handleGroupChange(v)
	case *events.Message:
		w.handleMessage(v)
	}
}

func (w *WhatsApp) publishJoin(info *types.GroupInfo, sender *types.JID) {
	inviter := ""
	if sender != nil {
		inviter = sender.User
	}
	members := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		members = append(members, p.JID.User)
	}
	w.bus.PublishEvent(&bus.GroupEvent{
		Kind:      bus.KindJoin,
		BotPhone:  w.phone,
		ChatID:    info.JID.String(),
		ChatName:  info.GroupName.Name,
		InviterID: inviter,
		Members:   members,
		IsGroup:   true,
	})
}

// handleGroupChange watches participant changes for our own removal.
func (w *WhatsApp) handleGroupChange(v *events.GroupInfo) {
	for _, left := range v.Leave {
		if left.User != w.phone {
			continue
		}
		w.bus.PublishEvent(&bus.GroupEvent{
			Kind:     bus.KindLeave,
			BotPhone: w.phone,
			ChatID:   v.JID.String(),
			IsGroup:  true,
		})
		return
	}
}

func (w *WhatsApp) handleMessage(v *events.Message) {
	content := v.Message.GetConversation()
	if content == "" {
		content = v.Message.GetExtendedTextMessage().GetText()
	}
	hasMedia := v.Message.GetImageMessage() != nil ||
		v.Message.GetAudioMessage() != nil ||
		v.Message.GetVideoMessage() != nil ||
		v.Message.GetDocumentMessage() != nil

	var mentions []string
	if ctxInfo := v.Message.GetExtendedTextMessage().GetContextInfo(); ctxInfo != nil {
		for _, jid := range ctxInfo.GetMentionedJID() {
			if parsed, err := types.ParseJID(jid); err == nil {
				mentions = append(mentions, parsed.User)
			}
		}
	}

	w.bus.PublishEvent(&bus.GroupEvent{
		Kind:      bus.KindMessage,
		BotPhone:  w.phone,
		ChatID:    v.Info.Chat.String(),
		SenderJID: v.Info.Sender.String(),
		MessageID: v.Info.ID,
		Content:   content,
		Mentions:  mentions,
		IsGroup:   v.Info.IsGroup,
		HasMedia:  hasMedia,
		FromSelf:  v.Info.IsFromMe,
		Timestamp: v.Info.Timestamp,
	})
}
