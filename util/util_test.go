package util

import (
	"fmt"
	"os"
	"path"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestParseRelativePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	workingDir, err := os.Getwd()
	require.NoError(t, err)

	currentDir := path.Dir(path.Join(workingDir))

	tests := []struct {
		name        string
		path        string
		expected    string
		expectedErr error
	}{
		{
			name:     "Home directory",
			path:     "~/data",
			expected: home + "/data",
		},
		{
			name:     "Current directory path",
			path:     "./",
			expected: workingDir,
		},
		{
			name:     "Relative directory - 1 deep",
			path:     "./data",
			expected: workingDir + "/data",
		},
		{
			name:     "Relative directory - 2 deep",
			path:     "../data",
			expected: currentDir + "/data",
		},
		{
			name:     "Absolute path",
			path:     "/home/logs",
			expected: "/home/logs",
		},
		{
			name:        "Empty path",
			expected:    "",
			expectedErr: ErrInvalidPath,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := ParseRelativePath(test.path)
			if test.expectedErr != nil {
				require.EqualError(t, err, test.expectedErr.Error())
			} else {
				require.NoError(t, err)
				require.Equal(t, test.expected, result)
			}
		})
	}
}

func TestValidateDirectory(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(afs afero.Fs)
		dir           string
		expectedError error
	}{
		{
			name: "Directory is Valid",
			setup: func(afs afero.Fs) {
				require.NoError(t, afs.Mkdir("/nonemptydir", 0755))
				require.NoError(t, afero.WriteFile(afs, "/nonemptydir/file.txt", []byte("content"), 0644))
			},
			dir: "/nonemptydir",
		},
		{
			name:          "Directory Does Not Exist",
			setup:         func(_ afero.Fs) {},
			dir:           "/nonexistent",
			expectedError: ErrDirDoesNotExist,
		},
		{
			name: "Path is Not a Directory",
			setup: func(afs afero.Fs) {
				require.NoError(t, afero.WriteFile(afs, "/file.txt", []byte("content"), 0644))
			},
			dir:           "/file.txt",
			expectedError: ErrPathIsNotDir,
		},
		{
			name: "Directory is Empty",
			setup: func(afs afero.Fs) {
				require.NoError(t, afs.Mkdir("/emptydir", 0755))
			},
			dir:           "/emptydir",
			expectedError: ErrDirIsEmpty,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			afs := afero.NewMemMapFs()
			test.setup(afs)

			err := ValidateDirectory(afs, test.dir)
			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(afs afero.Fs)
		file          string
		expectedError error
	}{
		{
			name: "File is Valid",
			setup: func(afs afero.Fs) {
				require.NoError(t, afero.WriteFile(afs, "/file.txt", []byte("content"), 0644))
			},
			file: "/file.txt",
		},
		{
			name: "File is Empty",
			setup: func(afs afero.Fs) {
				require.NoError(t, afero.WriteFile(afs, "/emptyfile.txt", []byte(""), 0644))
			},
			file:          "/emptyfile.txt",
			expectedError: ErrFileIsEmtpy,
		},
		{
			name:          "File Does Not Exist",
			setup:         func(_ afero.Fs) {},
			file:          "/nonexistent",
			expectedError: ErrFileDoesNotExist,
		},
		{
			name: "Path is a Directory",
			setup: func(afs afero.Fs) {
				require.NoError(t, afs.Mkdir("/directory", 0755))
			},
			file:          "/directory",
			expectedError: ErrPathIsDir,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			afs := afero.NewMemMapFs()
			test.setup(afs)

			err := ValidateFile(afs, test.file)
			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(afs afero.Fs)
		path          string
		expected      [3]bool // exists, isDir, isEmpty
		expectedError error
	}{
		{
			name: "Path is Valid Non-Empty File",
			setup: func(afs afero.Fs) {
				require.NoError(t, afero.WriteFile(afs, "/file.txt", []byte("content"), 0644))
			},
			path:     "/file.txt",
			expected: [3]bool{true, false, false},
		},
		{
			name: "Path is Valid Non-Empty Directory",
			setup: func(afs afero.Fs) {
				require.NoError(t, afs.Mkdir("/nonemptydir", 0755))
				require.NoError(t, afero.WriteFile(afs, "/nonemptydir/file.txt", []byte("content"), 0644))
			},
			path:     "/nonemptydir",
			expected: [3]bool{true, true, false},
		},
		{
			name:     "Non-Existent Path",
			setup:    func(_ afero.Fs) {},
			path:     "/nonexistent",
			expected: [3]bool{false, false, false},
		},
		{
			name:          "Empty Path",
			setup:         func(_ afero.Fs) {},
			path:          "",
			expected:      [3]bool{false, false, false},
			expectedError: ErrInvalidPath,
		},
		{
			name:          "Nil filesystem",
			setup:         func(_ afero.Fs) {},
			path:          "/some/path",
			expected:      [3]bool{false, false, false},
			expectedError: fmt.Errorf("filesystem is nil"),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var afs afero.Fs
			if test.name != "Nil filesystem" {
				afs = afero.NewMemMapFs()
			}
			test.setup(afs)

			exists, isDir, empty, err := validatePath(afs, test.path)

			if test.expectedError != nil {
				require.ErrorContains(t, err, test.expectedError.Error())
			} else {
				require.NoError(t, err)
				require.Equal(t, test.expected[0], exists)
				require.Equal(t, test.expected[1], isDir)
				require.Equal(t, test.expected[2], empty)
			}
		})
	}
}

func TestGetFileContents(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		fileContents  []byte
		expectedError error
	}{
		{
			name:         "Valid Generated file",
			path:         "/valid/file/path",
			fileContents: []byte("file contents"),
		},
		{
			name:          "Empty File",
			path:          "/invalid/file/path",
			fileContents:  []byte(""),
			expectedError: ErrFileIsEmtpy,
		},
		{
			name:          "Invalid File Path",
			path:          "/missing/file/path",
			expectedError: ErrFileDoesNotExist,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			afs := afero.NewMemMapFs()

			if test.fileContents != nil {
				require.NoError(t, afero.WriteFile(afs, test.path, test.fileContents, 0644))
			}

			result, err := GetFileContents(afs, test.path)

			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
			} else {
				require.NoError(t, err)
				require.Equal(t, test.fileContents, result)
			}
		})
	}
}
