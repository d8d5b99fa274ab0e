package cli

import (
	"fmt"
	"io"
	"os"

	"freight-dashboard/internal/dataset"
	"freight-dashboard/internal/models"
)

// Execute implements the go-flags Commander interface for ExportCommand.
func (c *ExportCommand) Execute(args []string) error {
	_, result, err := evaluate(c.globals, c.analytics)
	if err != nil {
		return err
	}

	write := dataset.WriteCSV
	if c.Contacts {
		write = dataset.WriteContactsCSV
	}

	if c.Output == "" {
		return write(c.globals.output(), result.Records)
	}
	if err := writeFile(c.Output, result.Records, write); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %d leads to %s\n", len(result.Records), c.Output)
	return nil
}

func writeFile(path string, records []models.Record, write func(io.Writer, []models.Record) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(f, records); err != nil {
		f.Close()
		return fmt.Errorf("write export file: %w", err)
	}
	return f.Close()
}
