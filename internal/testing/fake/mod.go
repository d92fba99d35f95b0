// Package fake provides fake implementations for interfaces commonly used in
// the repository.
// The implementations offer configuration to return errors when it is needed by
// the unit test and it is also possible to record the call of functions of an
// object in some cases.
package fake

import (
	"fmt"
	"io"
	"reflect"

	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error used by the fake implementations.
func GetError() error {
	return fakeErr
}

// Err returns the message of the fake error prefixed by the given message.
func Err(msg string) string {
	return fmt.Sprintf("%s: %v", msg, fakeErr)
}

// Call is a tool to keep track of a function calls.
type Call struct {
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.calls = append(c.calls, args)
}

// BadWriter is a fake implementation of io.Writer that fails after a given
// number of bytes.
//
// - implements io.Writer
type BadWriter struct {
	Limit   int
	written int
}

// NewBadWriter returns a writer that fails on the first write.
func NewBadWriter() *BadWriter {
	return &BadWriter{}
}

// Write implements io.Writer.
func (w *BadWriter) Write(p []byte) (int, error) {
	if w.written+len(p) > w.Limit {
		n := w.Limit - w.written
		w.written = w.Limit

		return n, fakeErr
	}

	w.written += len(p)

	return len(p), nil
}

// BadReader is a fake implementation of io.Reader that always fails.
//
// - implements io.Reader
type BadReader struct{}

// Read implements io.Reader.
func (BadReader) Read([]byte) (int, error) {
	return 0, fakeErr
}

var _ io.Reader = BadReader{}

// SurrogateProvider is a fake surrogate provider that substitutes the values
// of one type with the values of another, and records the calls.
//
// - implements contract.SurrogateProvider
type SurrogateProvider struct {
	From      reflect.Type
	To        reflect.Type
	ToWire    func(interface{}) interface{}
	FromWire  func(interface{}) interface{}
	Calls     *Call
	Err       error
	ErrToWire error
}

// GetSurrogateType implements contract.SurrogateProvider.
func (p SurrogateProvider) GetSurrogateType(t reflect.Type) reflect.Type {
	if t == p.From {
		return p.To
	}

	return t
}

// GetObjectToSerialize implements contract.SurrogateProvider.
func (p SurrogateProvider) GetObjectToSerialize(obj interface{}, target reflect.Type) (interface{}, error) {
	p.record("serialize", obj)

	if p.ErrToWire != nil {
		return nil, p.ErrToWire
	}

	return p.ToWire(obj), nil
}

// GetDeserializedObject implements contract.SurrogateProvider.
func (p SurrogateProvider) GetDeserializedObject(obj interface{}, target reflect.Type) (interface{}, error) {
	p.record("deserialize", obj)

	if p.Err != nil {
		return nil, p.Err
	}

	return p.FromWire(obj), nil
}

func (p SurrogateProvider) record(op string, obj interface{}) {
	if p.Calls != nil {
		p.Calls.Add(op, obj)
	}
}
