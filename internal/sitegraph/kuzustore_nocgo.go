//go:build !cgo

package sitegraph

func openFile(string) (Store, error) { return nil, ErrKuzuUnavailable }
