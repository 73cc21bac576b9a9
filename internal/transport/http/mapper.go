package http

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/quantumspace/chatcore/internal/core"
	"github.com/quantumspace/chatcore/internal/proto"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func decodePayload[T any](raw json.RawMessage) (T, *proto.Error) {
	var payload T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed payload"}
	}
	if err := validate.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return payload, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid " + fieldErrs[0].Field()}
		}
		return payload, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "invalid payload"}
	}
	return payload, nil
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeAuthenticate:
		data, perr := decodePayload[proto.AuthenticateData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandAuthenticate, Token: data.Token}, nil
	case proto.InboundTypeJoinRoom:
		data, perr := decodePayload[proto.RoomData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandJoinRoom, RoomID: data.RoomID}, nil
	case proto.InboundTypeLeaveRoom:
		data, perr := decodePayload[proto.RoomData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandLeaveRoom, RoomID: data.RoomID}, nil
	case proto.InboundTypeSendMessage:
		data, perr := decodePayload[proto.SendMessageData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{
			Kind:        core.CommandSendMessage,
			RoomID:      data.RoomID,
			Content:     data.Content,
			MessageType: data.MessageType,
		}, nil
	case proto.InboundTypeTyping:
		data, perr := decodePayload[proto.TypingData](inbound.Data)
		if perr != nil {
			return nil, perr
		}
		return &core.Command{Kind: core.CommandTyping, RoomID: data.RoomID, IsTyping: data.IsTyping}, nil
	default:
		return nil, &proto.Error{Code: core.ErrCodeInvalidMessage, Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	ts := event.At.UnixMilli()

	switch event.Kind {
	case core.EventAuthenticated:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventAuthenticated,
			Data:  proto.AuthenticatedData{User: userToProto(*event.User)},
		}
	case core.EventAuthError:
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventAuthError,
			Error: errorToProto(event.Error),
		}
	case core.EventRoomUsers:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomUsers,
			Data: proto.RoomUsersData{
				RoomID: event.RoomID,
				Users:  usersToProto(event.Users),
			},
		}
	case core.EventUserJoined, core.EventUserLeft:
		name := proto.EventUserJoined
		if event.Kind == core.EventUserLeft {
			name = proto.EventUserLeft
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data: proto.PresenceChangeData{
				RoomID:    event.RoomID,
				UserID:    event.User.UserID,
				Username:  event.User.Username,
				Timestamp: ts,
			},
		}
	case core.EventSystemMessage, core.EventNewMessage:
		name := proto.EventNewMessage
		if event.Kind == core.EventSystemMessage {
			name = proto.EventSystemMessage
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data: proto.MessageData{
				RoomID:  event.RoomID,
				Message: messageToProto(event.Message),
			},
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.UserTypingData{
				RoomID:    event.RoomID,
				UserID:    event.User.UserID,
				Username:  event.User.Username,
				IsTyping:  event.IsTyping,
				Timestamp: ts,
			},
		}
	case core.EventError:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: errorToProto(event.Error)}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func errorToProto(err *core.CoreError) *proto.Error {
	if err == nil {
		return &proto.Error{Code: "unknown", Msg: "unknown error"}
	}
	return &proto.Error{Code: err.Code, Msg: err.Message}
}

func userToProto(id core.Identity) proto.User {
	return proto.User{UserID: id.UserID, Username: id.Username, DisplayName: id.DisplayName}
}

// usersToProto never returns nil so an empty room encodes as [].
func usersToProto(ids []core.Identity) []proto.User {
	users := lo.Map(ids, func(id core.Identity, _ int) proto.User {
		return userToProto(id)
	})
	if users == nil {
		users = []proto.User{}
	}
	return users
}

func messageToProto(m *core.Message) proto.Message {
	return proto.Message{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.Sender.UserID,
		SenderName:  m.Sender.Name(),
		Content:     m.Body,
		MessageType: string(m.Type),
		CreatedAt:   m.CreatedAt.UnixMilli(),
	}
}
