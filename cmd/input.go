package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/saberlab/internal/table"
)

// readFlags are the input flags shared by every command that loads a table.
type readFlags struct {
	delimiter  string
	sheetName  string
	sheetIndex int
}

func (rf *readFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.delimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default: by extension)")
	cmd.Flags().StringVar(&rf.sheetName, "sheet", "", "XLSX: sheet name to read")
	cmd.Flags().IntVar(&rf.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (used when --sheet is empty)")
}

func (rf *readFlags) reset() {
	*rf = readFlags{}
}

func (rf *readFlags) options() (table.ReadOptions, error) {
	opt := table.ReadOptions{SheetName: rf.sheetName, SheetIndex: rf.sheetIndex}
	switch rf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", rf.delimiter)
	}
	return opt, nil
}

func (rf *readFlags) read(path string) (*table.Table, error) {
	opt, err := rf.options()
	if err != nil {
		return nil, err
	}
	return table.Read(path, opt)
}
