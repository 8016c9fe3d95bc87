package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// MaxInputFileSize bounds every file the CLI reads.
const MaxInputFileSize = 16 * 1024 * 1024

// OutputFormat is the text encoding of binary fields.
type OutputFormat string

const (
	FormatHex    OutputFormat = "hex"
	FormatBase64 OutputFormat = "base64"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	keyColor  = color.New(color.FgCyan)
)

func parseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case FormatHex, "":
		return FormatHex, nil
	case FormatBase64:
		return FormatBase64, nil
	default:
		return "", errors.Errorf("invalid format %q: must be one of hex, base64", s)
	}
}

func encodeBytes(data []byte, format OutputFormat) string {
	switch format {
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(data)
	default:
		return hex.EncodeToString(data)
	}
}

// decodeString accepts hex or base64.
func decodeString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := hex.DecodeString(s); err == nil {
		return data, nil
	}
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return nil, errors.New("unable to decode string as hex or base64")
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func readInput(filename string) ([]byte, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat file")
	}
	if info.Size() > MaxInputFileSize {
		return nil, errors.Errorf("input file too large: %d > %d bytes", info.Size(), MaxInputFileSize)
	}
	return os.ReadFile(filename)
}

// loadJSON decodes an export written by this CLI.
func loadJSON(filename string, v interface{}) error {
	data, err := readInput(filename)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to parse %s", filename)
	}
	return nil
}

// loadField returns the decoded binary field of a JSON export. Files that
// are not JSON are read as a bare hex or base64 blob.
func loadField(filename, field string) ([]byte, error) {
	data, err := readInput(filename)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err == nil {
		val, ok := fields[field].(string)
		if !ok {
			return nil, errors.Errorf("%s has no %q field", filename, field)
		}
		return decodeString(val)
	}
	return decodeString(string(data))
}

// writeJSON writes v as indented JSON to filename, or to the command's
// stdout when filename is empty. Files are created with mode 0600.
func writeJSON(cmd *cobra.Command, v interface{}, filename string) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal output")
	}
	return writeOutput(cmd.OutOrStdout(), out, filename)
}

func writeOutput(stdout io.Writer, data []byte, filename string) error {
	if filename == "" {
		_, err := fmt.Fprintln(stdout, string(data))
		return err
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "failed to write output file")
	}
	// umask may have widened the mode
	return os.Chmod(filename, 0600)
}
