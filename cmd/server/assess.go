package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

func assessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess [patient.json]",
		Short: "Assess one patient record and print the result",
		Long:  "Assess one patient record read from the given file, or from stdin when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			record, err := readPatientRecord(in)
			if err != nil {
				return err
			}

			manager, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), manager.GetConfig())
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.reasoning.Assess(cmd.Context(), record)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func readPatientRecord(r io.Reader) (*domain.PatientRecord, error) {
	var record domain.PatientRecord
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, fmt.Errorf("invalid patient record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	record.DeriveBMI()
	return &record, nil
}
