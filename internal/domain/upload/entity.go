// internal/domain/upload/entity.go
package upload

import "fmt"

// StoredFile is a file written to local storage
type StoredFile struct {
	OriginalName string `json:"original_name"`
	Filename     string `json:"filename"`
	Path         string `json:"-"`
	URL          string `json:"url"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
}

// FailedUpload represents a failed upload
type FailedUpload struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// BulkUploadResult represents bulk upload result
type BulkUploadResult struct {
	Uploaded []StoredFile   `json:"uploaded"`
	Failed   []FailedUpload `json:"failed"`
}

// URLs lists the public URLs of the uploaded files
func (r *BulkUploadResult) URLs() []string {
	urls := make([]string, 0, len(r.Uploaded))
	for _, f := range r.Uploaded {
		urls = append(urls, f.URL)
	}
	return urls
}

// GetFormattedSize returns human-readable file size
func (f *StoredFile) GetFormattedSize() string {
	const unit = 1024
	if f.Size < unit {
		return fmt.Sprintf("%d B", f.Size)
	}

	div, exp := int64(unit), 0
	for n := f.Size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(f.Size)/float64(div), "KMGTPE"[exp])
}
