package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/quantumspace/chatcore/internal/app"
	"github.com/quantumspace/chatcore/internal/auth"
	"github.com/quantumspace/chatcore/internal/store"
	"github.com/quantumspace/chatcore/internal/store/sqlite"
)

type seedInput struct {
	Room  string   `validate:"required,min=3,max=50"`
	Users []string `validate:"required,min=1,dive,required,min=3,max=32"`
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var input seedInput

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a room and member accounts for local runs, printing a token per user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.New().Struct(input); err != nil {
				return fmt.Errorf("invalid seed input: %w", err)
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			ctx := cmd.Context()
			room, err := ensureRoom(ctx, st, input.Room)
			if err != nil {
				return err
			}
			logger.Info().Int64("room_id", room.ID).Str("room", room.Name).Msg("room ready")

			jwtCfg := app.JWTConfig(&cfg)
			for _, name := range input.Users {
				user, err := ensureUser(ctx, st, name)
				if err != nil {
					return err
				}
				if err := st.AddMember(ctx, user.ID, room.ID); err != nil {
					return fmt.Errorf("add %s to %s: %w", name, room.Name, err)
				}
				token, err := auth.GenerateToken(jwtCfg, user.ID, user.Username)
				if err != nil {
					return fmt.Errorf("token for %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "room=%d user=%d username=%s token=%s\n", room.ID, user.ID, user.Username, token)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input.Room, "room", "general", "room name (3 to 50 characters)")
	cmd.Flags().StringSliceVar(&input.Users, "user", nil, "username to create and add to the room (repeatable)")
	return cmd
}

func ensureRoom(ctx context.Context, st store.RoomStore, name string) (*store.Room, error) {
	room, err := st.GetRoomByName(ctx, name)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up room: %w", err)
	}
	return st.CreateRoom(ctx, name)
}

func ensureUser(ctx context.Context, st store.UserStore, username string) (*store.User, error) {
	user, err := st.GetUserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	return st.CreateUser(ctx, username, "")
}
