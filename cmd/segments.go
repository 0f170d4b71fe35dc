package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/syncdub/internal/backend"
	"github.com/MimeLyc/syncdub/internal/config"
	"github.com/MimeLyc/syncdub/internal/dubbing"
	"github.com/MimeLyc/syncdub/internal/subtitle"
	"github.com/MimeLyc/syncdub/internal/translator"
)

func newSegmentsCommand() *cobra.Command {
	var (
		asSRT      bool
		targetLang string
	)

	cmd := &cobra.Command{
		Use:   "segments <file.vtt>",
		Short: "Merge a WebVTT file into speakable segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			cues, err := subtitle.NewReader().Read(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			segments := subtitle.Merge(cues)

			var translated map[int]string
			if targetLang != "" {
				translated, err = translateSegments(cmd, segments, targetLang)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asSRT {
				return subtitle.NewWriter().Write(out, segments, translated)
			}
			renderSegments(out, segments, translated)
			fmt.Fprintf(out, "%d cues merged into %d segments, detected language %q\n",
				len(cues), len(segments), subtitle.DetectLanguage(cues))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asSRT, "srt", false, "Write SubRip instead of a table")
	cmd.Flags().StringVar(&targetLang, "translate", "", "Translate segments with the configured providers")
	return cmd
}

func translateSegments(cmd *cobra.Command, segments []subtitle.Segment, targetLang string) (map[int]string, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, err
	}
	be := backend.NewClient(cfg.Backend.BaseURL, time.Duration(cfg.Backend.Timeout)*time.Second)
	chain, _ := translator.FromConfig(cfg, be)

	ret := make(map[int]string, len(segments))
	for i, seg := range segments {
		tr, err := chain.Translate(cmd.Context(), seg.Text, targetLang)
		if err != nil {
			return nil, err
		}
		ret[i] = tr
	}
	return ret, nil
}

func renderSegments(out io.Writer, segments []subtitle.Segment, translated map[int]string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"#", "Start", "End", "Words", "Rate", "Text"}
	if translated != nil {
		header = append(header, "Translated")
	}
	tw.AppendHeader(header)

	for i, seg := range segments {
		spoken := seg.Text
		if tr := translated[i]; tr != "" {
			spoken = tr
		}
		row := table.Row{
			i,
			subtitle.FormatClock(seg.StartTime),
			subtitle.FormatClock(seg.EndTime),
			subtitle.WordCount(seg.Text),
			strconv.FormatFloat(dubbing.SpeakingRate(spoken, seg.Duration()), 'f', 2, 64),
			text.WrapSoft(seg.Text, 60),
		}
		if translated != nil {
			row = append(row, text.WrapSoft(translated[i], 60))
		}
		tw.AppendRow(row)
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	tw.Render()
}
