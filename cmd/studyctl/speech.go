package main

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say TEXT",
		Short: "Speak text through the configured voice",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := buildServices(cmd)
			if err != nil {
				return err
			}
			speaker := services.Speaker
			speaker.Speak(strings.Join(args, " "))
			if err := speaker.Wait(cmd.Context()); err != nil {
				speaker.Stop()
				return err
			}
			return nil
		},
	}
}

func newVoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List local synthesis voices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := buildServices(cmd)
			if err != nil {
				return err
			}
			voices, err := services.Speaker.Voices(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), voices)
		},
	}
}
