// Package jasper drives the JasperStarter command line: it builds the argument
// vector for a report, runs the engine under a timeout and checks that the
// engine is installed.
package jasper

import (
	"strconv"
)

// OutputFormat is the only format the service requests from the engine.
const OutputFormat = "pdf"

// Param is a single report parameter passed with -P.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Params keeps report parameters in insertion order.
type Params []Param

// Set appends key=value, or replaces the value in place when key is present.
func (p *Params) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the value stored for key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Database holds the connection flags handed to the engine for
// database backed reports.
type Database struct {
	Type     string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

// Invocation describes one run of the engine.
type Invocation struct {
	TemplatePath string
	// OutputPath is the output base path; the engine appends ".pdf".
	OutputPath string
	Params     Params
	// Database is nil for reports fed only by parameters.
	Database *Database
}

// ArtifactPath returns the file the engine is expected to write.
func (inv Invocation) ArtifactPath() string {
	return inv.OutputPath + "." + OutputFormat
}

// BuildArgs returns the argument vector (without the program name) for inv.
// The vector is passed to the engine directly, never through a shell.
func BuildArgs(inv Invocation) []string {
	args := make([]string, 0, 6+12+2*len(inv.Params))
	args = append(args,
		"process", inv.TemplatePath,
		"-o", inv.OutputPath,
		"-f", OutputFormat,
	)

	if db := inv.Database; db != nil {
		args = append(args,
			"-t", db.Type,
			"-H", db.Host,
			"-u", db.User,
			"-p", db.Password,
			"-n", db.Name,
			"--db-port", strconv.Itoa(db.Port),
		)
	}

	for _, p := range inv.Params {
		args = append(args, "-P", p.Key+"="+p.Value)
	}
	return args
}

// Redact returns a copy of args with the database password masked.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "-p" {
			out[i+1] = "******"
			i++
		}
	}
	return out
}
