package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumspace/chatcore/internal/proto"
	"github.com/quantumspace/chatcore/internal/wsclient"
)

func newSmokeCmd(opts *rootOptions) *cobra.Command {
	var (
		url     string
		token   string
		roomID  int64
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Connect, authenticate, join a room and send one message",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" || roomID <= 0 {
				return errors.New("--token and --room are required")
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			c, err := wsclient.Dial(ctx, url, cfg.Retry, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			out := cmd.OutOrStdout()
			me, err := c.Authenticate(ctx, token)
			if err != nil {
				return fmt.Errorf("authenticate: %w", err)
			}
			fmt.Fprintf(out, "authenticated as %s (id=%d)\n", me.Username, me.UserID)

			if err := c.Send(ctx, proto.InboundTypeJoinRoom, proto.RoomData{RoomID: roomID}); err != nil {
				return err
			}
			var present proto.RoomUsersData
			if err := c.Expect(ctx, proto.EventRoomUsers, &present); err != nil {
				return fmt.Errorf("join: %w", err)
			}
			fmt.Fprintf(out, "joined room %d, %d other user(s) present\n", roomID, len(present.Users))

			if err := c.Send(ctx, proto.InboundTypeSendMessage, proto.SendMessageData{RoomID: roomID, Content: text}); err != nil {
				return err
			}
			var msg proto.MessageData
			if err := c.Expect(ctx, proto.EventNewMessage, &msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			fmt.Fprintf(out, "message %d delivered: %q\n", msg.Message.ID, msg.Message.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	cmd.Flags().StringVar(&token, "token", "", "token printed by the token or seed command")
	cmd.Flags().Int64Var(&roomID, "room", 0, "room id to join")
	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "total timeout for the run")
	return cmd
}
