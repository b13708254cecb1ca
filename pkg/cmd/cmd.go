// Package cmd turns a func(context.Context, Options) error into a command
// whose options are parsed with go-flags.
package cmd

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"reflect"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/cli"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ExitStatus is implemented by errors that pick their own exit code.
type ExitStatus interface {
	ExitStatus() int
}

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string   { return e.err.Error() }
func (e *exitError) Unwrap() error   { return e.err }
func (e *exitError) ExitStatus() int { return e.code }

// WithStatus makes a command exit with code when it returns err.
func WithStatus(code int, err error) error {
	return &exitError{code: code, err: err}
}

type Cmd struct {
	syn, name string
	f         reflect.Value

	opts   reflect.Value
	parser *flags.Parser

	// Ui receives error messages, cli.BasicUi on stdout/stderr when nil.
	Ui cli.Ui
}

var _ cli.Command = (*Cmd)(nil)

func New(name, syn string, f interface{}) *Cmd {
	rv := reflect.ValueOf(f)

	if rv.Kind() != reflect.Func {
		panic("must pass a function")
	}

	rt := rv.Type()

	if rt.NumIn() != 2 {
		panic("must provide two arguments only")
	}

	if rt.NumOut() != 1 {
		panic("must return one argument only")
	}

	in := rt.In(1)

	if in.Kind() != reflect.Struct {
		panic("argument must be a struct")
	}

	sv := reflect.New(in)

	parser := flags.NewNamedParser(name, flags.Default)
	parser.ShortDescription = syn
	parser.LongDescription = syn
	parser.Usage = "[options] files..."

	_, err := parser.AddGroup("Application Options", "", sv.Interface())
	if err != nil {
		panic(err)
	}

	return &Cmd{
		syn:    syn,
		name:   name,
		f:      rv,
		opts:   sv,
		parser: parser,
	}
}

func (w *Cmd) Help() string {
	var buf bytes.Buffer
	w.parser.WriteHelp(&buf)
	return buf.String()
}

func (w *Cmd) Synopsis() string {
	return w.syn
}

func (w *Cmd) Run(args []string) int {
	_, err := w.parser.ParseArgs(args)
	if err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return 0
		}

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelOnSignal(cancel, os.Interrupt, unix.SIGQUIT, unix.SIGTERM)

	rets := w.f.Call([]reflect.Value{reflect.ValueOf(ctx), w.opts.Elem()})

	if err, ok := rets[0].Interface().(error); ok {
		if err != nil {
			w.ui().Output(err.Error())

			var es ExitStatus
			if errors.As(err, &es) {
				return es.ExitStatus()
			}

			return 1
		}
	}

	return 0
}

func (w *Cmd) ui() cli.Ui {
	if w.Ui == nil {
		w.Ui = &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
		}
	}

	return w.Ui
}

func cancelOnSignal(cancel func(), signals ...os.Signal) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, signals...)

	go func() {
		for range c {
			cancel()
		}
	}()
}
