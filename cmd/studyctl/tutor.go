package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wailsapp/mimetype"

	"pkt.systems/pslog"

	"studysync/internal/bootstrap"
	"studysync/internal/domain"
	"studysync/internal/usecase"
)

func newAskCmd() *cobra.Command {
	var images []string
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask the tutor a free-form question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, domain.KindFreeAsk, strings.Join(args, " "), images)
		},
	}
	cmd.Flags().StringArrayVar(&images, "image", nil, "study material image (repeatable)")
	return cmd
}

func newGradeCmd() *cobra.Command {
	var transcript string
	var images []string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade a transcript against study material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if transcript == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read transcript: %w", err)
				}
				transcript = string(data)
			}
			if strings.TrimSpace(transcript) == "" {
				return errors.New("transcript is required")
			}
			return runRequest(cmd, domain.KindGrade, transcript, images)
		},
	}
	cmd.Flags().StringVar(&transcript, "transcript", "", "explanation to grade, or - to read stdin")
	cmd.Flags().StringArrayVar(&images, "image", nil, "study material image (repeatable)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newQuizCmd() *cobra.Command {
	var images []string
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Generate a multiple choice quiz from study material",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, domain.KindQuiz, "", images)
		},
	}
	cmd.Flags().StringArrayVar(&images, "image", nil, "study material image (repeatable)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func newNotesCmd() *cobra.Command {
	var topic string
	var images []string
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Summarize study material into notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, domain.KindNotesSummary, topic, images)
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "focus topic")
	cmd.Flags().StringArrayVar(&images, "image", nil, "study material image (repeatable)")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func runRequest(cmd *cobra.Command, kind domain.InstructionKind, text string, paths []string) error {
	images, err := readImages(paths)
	if err != nil {
		return err
	}
	services, err := buildServices(cmd)
	if err != nil {
		return err
	}
	payload, err := domain.NewRequestPayload(kind, strings.TrimSpace(text), images, services.Config.Request.MaxImages)
	if err != nil {
		return err
	}
	result, err := services.Requests.Request(cmd.Context(), payload)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func buildServices(cmd *cobra.Command, opts ...bootstrap.Option) (bootstrap.Services, error) {
	opts = append([]bootstrap.Option{bootstrap.WithLogger(pslog.Ctx(cmd.Context()))}, opts...)
	return bootstrap.Build(usecase.NopEvents{}, opts...)
}

// readImages loads attachments from disk, sniffing the content type.
func readImages(paths []string) ([]domain.Image, error) {
	images := make([]domain.Image, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("image %s is empty", filepath.Base(path))
		}
		mime := mimetype.Detect(data).String()
		mime, _, _ = strings.Cut(mime, ";")
		if !strings.HasPrefix(mime, "image/") {
			return nil, fmt.Errorf("%s is not an image (%s)", filepath.Base(path), mime)
		}
		images = append(images, domain.Image{MIMEType: mime, Data: data})
	}
	return images, nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
