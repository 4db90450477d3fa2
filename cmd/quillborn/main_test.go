package main

import (
	"reflect"
	"testing"
)

func TestRewriteProjectPathArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"quillborn"},
			want: []string{"quillborn"},
		},
		{
			name: "project path first token",
			in:   []string{"quillborn", "./The_Long_Night.qb"},
			want: []string{"quillborn", "--project", "./The_Long_Night.qb", "edit"},
		},
		{
			name: "trailing slash",
			in:   []string{"quillborn", "Book.qb/"},
			want: []string{"quillborn", "--project", "Book.qb/", "edit"},
		},
		{
			name: "project path after value flag",
			in:   []string{"quillborn", "--format", "text", "Book.qb"},
			want: []string{"quillborn", "--format", "text", "--project", "Book.qb", "edit"},
		},
		{
			name: "project path after equals flag",
			in:   []string{"quillborn", "--format=text", "Book.qb"},
			want: []string{"quillborn", "--format=text", "--project", "Book.qb", "edit"},
		},
		{
			name: "project path after bool flag",
			in:   []string{"quillborn", "-v", "Book.qb"},
			want: []string{"quillborn", "-v", "--project", "Book.qb", "edit"},
		},
		{
			name: "project path after double dash",
			in:   []string{"quillborn", "--", "Book.qb"},
			want: []string{"quillborn", "--project", "Book.qb", "edit"},
		},
		{
			name: "chapter id after edit not rewritten",
			in:   []string{"quillborn", "edit", "Book.qb"},
			want: []string{"quillborn", "edit", "Book.qb"},
		},
		{
			name: "bare suffix not rewritten",
			in:   []string{"quillborn", ".qb"},
			want: []string{"quillborn", ".qb"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"quillborn", "wat"},
			want: []string{"quillborn", "wat"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteProjectPathArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteProjectPathArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
