package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDocument(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		doc     *Document
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid document",
			doc: &Document{
				ID:              "doc1",
				Name:            "travel-policy.pdf",
				Author:          "ops@example.com",
				KnowledgeBaseID: "kb1",
				IndexStatus:     IndexStatusPending,
				CreatedAt:       now,
				LastUpdate:      now,
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			doc: &Document{
				Name:            "travel-policy.pdf",
				Author:          "ops@example.com",
				KnowledgeBaseID: "kb1",
				IndexStatus:     IndexStatusPending,
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing Name",
			doc: &Document{
				ID:              "doc1",
				Author:          "ops@example.com",
				KnowledgeBaseID: "kb1",
				IndexStatus:     IndexStatusPending,
			},
			wantErr: true,
			errMsg:  "Name",
		},
		{
			name: "missing KnowledgeBaseID",
			doc: &Document{
				ID:          "doc1",
				Name:        "travel-policy.pdf",
				Author:      "ops@example.com",
				IndexStatus: IndexStatusPending,
			},
			wantErr: true,
			errMsg:  "KnowledgeBaseID",
		},
		{
			name: "invalid index status",
			doc: &Document{
				ID:              "doc1",
				Name:            "travel-policy.pdf",
				Author:          "ops@example.com",
				KnowledgeBaseID: "kb1",
				IndexStatus:     IndexStatus("bogus"),
			},
			wantErr: true,
			errMsg:  "IndexStatus",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateDocumentNil(t *testing.T) {
	err := ValidateDocument(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		name     string
		size     int64
		expected string
	}{
		{"sub-kilobyte", 512, "0.50 KB"},
		{"kilobytes", 2048, "2.00 KB"},
		{"megabytes", 5 * 1024 * 1024, "5.00 MB"},
		{"gigabytes", 3 * 1024 * 1024 * 1024, "3.00 GB"},
		{"zero", 0, "0.00 KB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSize(tt.size))
		})
	}
}

func TestValidateKnowledgeBase(t *testing.T) {
	tests := []struct {
		name    string
		kb      *KnowledgeBase
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid knowledge base",
			kb: &KnowledgeBase{
				ID:     "kb1",
				Name:   "HR Policies",
				Author: "ops@example.com",
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			kb: &KnowledgeBase{
				Name:   "HR Policies",
				Author: "ops@example.com",
			},
			wantErr: true,
			errMsg:  "ID",
		},
		{
			name: "missing Name",
			kb: &KnowledgeBase{
				ID:     "kb1",
				Author: "ops@example.com",
			},
			wantErr: true,
			errMsg:  "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKnowledgeBase(tt.kb)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
