package main

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pure-golang/csvmail/table"
)

type streams struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

type options struct {
	delim          string
	types          []string
	host           string
	port           int
	startTLS       bool
	login          string
	colsName       string
	withoutConfirm bool
	wait           float64
	help           bool

	templatePath string
	csvPath      string
}

const longHelp = `A tool to format mails from csv and to send them.

Mails are rendered from a text/template with the namespace of each row.`

const examples = `  A template file can be:
    From: Me <my-mail-address@example.org>
    To: {{.email}}
    Subject: Your results

    Hi {{capitalize .name}},

    You obtain the following result {{.result}}, with the value {{printf "%.1f" .value}}.
    For information, the class mean is {{printf "%.1f" (mean .cols.value)}}.

    -- 
    me

  With a csv file containing columns email, name, result, value:
    csvformatmail template.txt -t value:float listing.csv`

func newRootCmd(s streams) *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "csvformatmail [flags] template inputcsv",
		Short:        "Format mails from csv and send them",
		Long:         longHelp,
		Example:      examples,
		Version:      version,
		Args:         cobra.ExactArgs(2),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.templatePath, o.csvPath = args[0], args[1]
			return run(cmd, o, s)
		},
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.errOut)

	f := cmd.Flags()
	// -h is the SMTP host; help is only reachable as --help.
	f.BoolVar(&o.help, "help", false, "show this help message and exit")
	f.StringVarP(&o.delim, "delim", "d", ",", "input delimiter")
	f.StringArrayVarP(&o.types, "type", "t", nil, `column type conversion, "column:type" with type one of str, int, float, bool (repeatable)`)
	f.StringVarP(&o.host, "host", "h", "localhost", "SMTP host")
	f.IntVarP(&o.port, "port", "p", 0, "SMTP port (default: 587 if STARTTLS enabled else 25)")
	f.BoolVar(&o.startTLS, "starttls", false, "enable TLS with STARTTLS")
	f.StringVarP(&o.login, "login", "l", "", "login used for authentication on the SMTP server, implies STARTTLS")
	f.StringVar(&o.colsName, "colsname", "cols", "name giving access to the values of all the columns, must not be a column name")
	f.BoolVar(&o.withoutConfirm, "without-confirm", false, "send mails without confirmation")
	f.Float64VarP(&o.wait, "wait", "w", 0, "wait time between mails, in seconds")
	f.SortFlags = false

	return cmd
}

func (o *options) delimiter() (rune, error) {
	r := []rune(o.delim)
	if len(r) != 1 {
		return 0, errors.Errorf("delimiter must be a single character, got %q", o.delim)
	}
	return r[0], nil
}

func (o *options) columnTypes() (map[string]table.ColType, error) {
	types := make(map[string]table.ColType, len(o.types))
	for _, t := range o.types {
		name, typ, err := table.ParseColType(t)
		if err != nil {
			return nil, err
		}
		types[name] = typ
	}
	return types, nil
}

func (o *options) pacing() (time.Duration, error) {
	if o.wait < 0 {
		return 0, errors.Errorf("wait must not be negative, got %v", o.wait)
	}
	return time.Duration(o.wait * float64(time.Second)), nil
}
