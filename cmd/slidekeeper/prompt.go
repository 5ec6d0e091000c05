package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var errNotConfirmed = errors.New("not confirmed; pass --yes to skip the prompt")

func interactive(cmd *cobra.Command) (*os.File, bool) {
	in, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return nil, false
	}
	fd := in.Fd()
	return in, isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// confirm asks a yes/no question on a terminal. Without a terminal the
// answer is no.
func confirm(cmd *cobra.Command, question string) bool {
	in, ok := interactive(cmd)
	if !ok {
		return false
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
