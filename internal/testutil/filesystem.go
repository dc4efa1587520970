package testutil

import (
	"errors"
	"path/filepath"
	"sync"

	fsimpl "fsrollback/internal/fs"
	"fsrollback/internal/rollback"
)

// ErrInjected is returned by FaultyFilesystemManager for injected failures.
var ErrInjected = errors.New("injected failure")

// Op names a FilesystemManager method that can be made to fail.
type Op string

const (
	OpCopyFile   Op = "CopyFile"
	OpCreateFile Op = "CreateFile"
	OpCreateTemp Op = "CreateTemp"
	OpMkdir      Op = "Mkdir"
	OpMkdirAll   Op = "MkdirAll"
	OpRemove     Op = "Remove"
	OpRemoveAll  Op = "RemoveAll"
)

type target struct {
	op   Op
	path string
}

// fault fails matching calls after skipping the first skip of them.
// remaining counts the failures left; a negative value never runs out.
type fault struct {
	err       error
	skip      int
	remaining int
}

func (f *fault) next() error {
	if f.skip > 0 {
		f.skip--
		return nil
	}
	if f.remaining == 0 {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
	}
	return f.err
}

// FaultyFilesystemManager runs on the real filesystem but fails chosen
// operations on chosen paths. Tests often run as root, where permission
// bits do not stop anything, so failures are injected instead.
//
// The target of an operation is its path argument. For CopyFile it is the
// destination, for CreateTemp the directory.
// Safe for concurrent use.
type FaultyFilesystemManager struct {
	*fsimpl.OSFilesystemManager

	mu        sync.Mutex
	faults    map[target]*fault
	dirFaults map[target]*fault
	hooks     map[target]func()
	calls     map[Op]int
}

var _ rollback.FilesystemManager = (*FaultyFilesystemManager)(nil)

func NewFaultyFilesystemManager() *FaultyFilesystemManager {
	return &FaultyFilesystemManager{
		OSFilesystemManager: fsimpl.NewOSFilesystemManager(),
		faults:              make(map[target]*fault),
		dirFaults:           make(map[target]*fault),
		hooks:               make(map[target]func()),
		calls:               make(map[Op]int),
	}
}

// FailOn makes op fail with ErrInjected whenever path is its target.
func (m *FaultyFilesystemManager) FailOn(op Op, path string) {
	m.FailWith(op, path, ErrInjected)
}

// FailWith makes op fail with err whenever path is its target.
func (m *FaultyFilesystemManager) FailWith(op Op, path string, err error) {
	m.setFault(m.faults, op, path, &fault{err: err, remaining: -1})
}

// FailTimes makes the next n calls of op on path fail with ErrInjected.
// Later calls succeed.
func (m *FaultyFilesystemManager) FailTimes(op Op, path string, n int) {
	m.setFault(m.faults, op, path, &fault{err: ErrInjected, remaining: n})
}

// FailAfter lets the next n calls of op on path succeed and fails every
// later one with ErrInjected.
func (m *FaultyFilesystemManager) FailAfter(op Op, path string, n int) {
	m.setFault(m.faults, op, path, &fault{err: ErrInjected, skip: n, remaining: -1})
}

// FailInDir makes op fail with err for every target directly inside dir.
// It reaches files whose names are not known in advance, such as
// temporary files.
func (m *FaultyFilesystemManager) FailInDir(op Op, dir string, err error) {
	m.setFault(m.dirFaults, op, dir, &fault{err: err, remaining: -1})
}

// Before runs fn at the start of every call of op on path, before any
// injected failure is returned.
func (m *FaultyFilesystemManager) Before(op Op, path string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[target{op, path}] = fn
}

// Calls returns how many times op has been called.
func (m *FaultyFilesystemManager) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *FaultyFilesystemManager) setFault(faults map[target]*fault, op Op, path string, f *fault) {
	m.mu.Lock()
	defer m.mu.Unlock()
	faults[target{op, path}] = f
}

func (m *FaultyFilesystemManager) check(op Op, path string) error {
	m.mu.Lock()
	m.calls[op]++
	hook := m.hooks[target{op, path}]
	var err error
	if f, ok := m.faults[target{op, path}]; ok {
		err = f.next()
	}
	if f, ok := m.dirFaults[target{op, filepath.Dir(path)}]; ok && err == nil {
		err = f.next()
	}
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (m *FaultyFilesystemManager) CopyFile(src, dst string) error {
	if err := m.check(OpCopyFile, dst); err != nil {
		return err
	}
	return m.OSFilesystemManager.CopyFile(src, dst)
}

func (m *FaultyFilesystemManager) CreateFile(path string) error {
	if err := m.check(OpCreateFile, path); err != nil {
		return err
	}
	return m.OSFilesystemManager.CreateFile(path)
}

func (m *FaultyFilesystemManager) CreateTemp(dir, pattern string) (string, error) {
	if err := m.check(OpCreateTemp, dir); err != nil {
		return "", err
	}
	return m.OSFilesystemManager.CreateTemp(dir, pattern)
}

func (m *FaultyFilesystemManager) Mkdir(path string) error {
	if err := m.check(OpMkdir, path); err != nil {
		return err
	}
	return m.OSFilesystemManager.Mkdir(path)
}

func (m *FaultyFilesystemManager) MkdirAll(path string) error {
	if err := m.check(OpMkdirAll, path); err != nil {
		return err
	}
	return m.OSFilesystemManager.MkdirAll(path)
}

func (m *FaultyFilesystemManager) Remove(path string) error {
	if err := m.check(OpRemove, path); err != nil {
		return err
	}
	return m.OSFilesystemManager.Remove(path)
}

func (m *FaultyFilesystemManager) RemoveAll(path string) error {
	if err := m.check(OpRemoveAll, path); err != nil {
		return err
	}
	return m.OSFilesystemManager.RemoveAll(path)
}
