package chat

import (
	"go.uber.org/zap"

	"github.com/zhouzirui/speaco/backend/internal/model/chat"
	"github.com/zhouzirui/speaco/backend/internal/protocol"
)

func (e *Engine) onJoin(session *Session, envelope protocol.Envelope) error {
	if session.Authorized() {
		return protocol.ErrAlreadyAuthorized
	}

	event, err := envelope.Join()
	if err != nil {
		return err
	}
	if err := e.registry.Join(session, event.Nickname); err != nil {
		return err
	}

	e.logger.Info("chatter joined", zap.String("session", session.ID), zap.String("nickname", event.Nickname))

	e.send(session, protocol.EventWelcome, protocol.Welcome{})
	e.send(session, protocol.EventMessages, protocol.Messages{Messages: e.history.Messages()})
	e.announce(event.Nickname + " joined the party")
	return nil
}

func (e *Engine) onMessage(session *Session, envelope protocol.Envelope) error {
	event, err := envelope.Message()
	if err != nil {
		return err
	}
	if err := e.checkAttachment(event.Attachment); err != nil {
		return err
	}

	id := session.chatter.TakeMessageID()
	e.post(chat.NewUserMessage(session.Nickname(), id, event.Text, event.Attachment, e.now()))
	return nil
}

// onEditMessage silently ignores ids that do not address one of the sender's messages.
func (e *Engine) onEditMessage(session *Session, envelope protocol.Envelope) error {
	event, err := envelope.EditMessage()
	if err != nil {
		return err
	}
	if err := e.checkAttachment(event.Attachment); err != nil {
		return err
	}
	id, err := envelope.MessageID()
	if err != nil {
		return err
	}

	n, ok := id.Int64()
	if !ok {
		return nil
	}
	updated, ok := e.history.Edit(session.Nickname(), n, event.Text, event.Attachment)
	if !ok {
		return nil
	}
	e.broadcast(protocol.EventMessageUpdated, updated)
	return nil
}

// onDeleteMessage notifies chatters even when nothing matched.
func (e *Engine) onDeleteMessage(session *Session, envelope protocol.Envelope) error {
	event, err := envelope.DeleteMessage()
	if err != nil {
		return err
	}

	if n, ok := event.ID.Int64(); ok {
		e.history.Delete(session.Nickname(), n)
	}
	e.broadcast(protocol.EventMessageDeleted, protocol.MessageDeleted{
		Sender: session.Nickname(),
		ID:     event.ID,
	})
	return nil
}

func (e *Engine) onAddAttachment(session *Session, envelope protocol.Envelope) error {
	event, err := envelope.AddAttachment()
	if err != nil {
		return err
	}

	id, err := e.attachments.Add(event.Name, event.Data)
	if err != nil {
		return err
	}
	e.send(session, protocol.EventAttachmentAdded, protocol.AttachmentAdded{ID: id})
	return nil
}

func (e *Engine) onFetchAttachment(session *Session, envelope protocol.Envelope) error {
	event, err := envelope.FetchAttachment()
	if err != nil {
		return err
	}

	attachment, ok := e.attachments.Fetch(event.ID)
	if !ok {
		return protocol.ErrAttachmentNotFound
	}
	e.send(session, protocol.EventAttachmentFetched, attachment)
	return nil
}

func (e *Engine) checkAttachment(id *string) error {
	if id != nil && !e.attachments.Exists(*id) {
		return protocol.ErrMessageAttachmentMissing
	}
	return nil
}
