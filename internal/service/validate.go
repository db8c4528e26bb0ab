package service

import (
	"encoding/json"
	"net/http"
	"strings"

	"carlot/internal/domain"
	"carlot/internal/storage"
)

// ParseTags decodes the JSON object sent in the tags form field. An empty
// value yields empty tags.
func ParseTags(raw string) (domain.Tags, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return domain.Tags{}, nil
	}
	if !strings.HasPrefix(raw, "{") {
		return domain.Tags{}, validationError("tags must be a JSON object")
	}

	var tags domain.Tags
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return domain.Tags{}, validationError("invalid tags format: %v", err)
	}
	tags.CarType = strings.TrimSpace(tags.CarType)
	tags.Company = strings.TrimSpace(tags.Company)
	tags.Dealer = strings.TrimSpace(tags.Dealer)
	return tags, nil
}

// ParseKeepImages decodes the JSON array of image URLs the caller wants to
// retain. Duplicates are dropped, first occurrence wins.
func ParseKeepImages(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}, nil
	}

	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil, validationError("invalid keepImages format: %v", err)
	}

	seen := make(map[string]struct{}, len(urls))
	keep := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, validationError("keepImages must not contain empty urls")
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		keep = append(keep, u)
	}
	return keep, nil
}

// checkFiles validates image payloads against the upload limits and fills in
// sniffed content types.
func checkFiles(files []storage.File, maxFileBytes int64) ([]storage.File, error) {
	checked := make([]storage.File, len(files))
	for i, f := range files {
		if len(f.Data) == 0 {
			return nil, validationError("image %q is empty", f.Name)
		}
		if maxFileBytes > 0 && int64(len(f.Data)) > maxFileBytes {
			return nil, validationError("image %q exceeds %d bytes", f.Name, maxFileBytes)
		}

		contentType := strings.TrimSpace(f.ContentType)
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(f.Data)
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, validationError("file %q is not an image (%s)", f.Name, contentType)
		}

		checked[i] = storage.File{
			Name:        f.Name,
			ContentType: contentType,
			Data:        f.Data,
		}
	}
	return checked, nil
}

// withoutKept returns the images of current that are not listed in keep.
func withoutKept(current, keep []string) []string {
	kept := make(map[string]struct{}, len(keep))
	for _, u := range keep {
		kept[u] = struct{}{}
	}
	var removed []string
	for _, u := range current {
		if _, ok := kept[u]; !ok {
			removed = append(removed, u)
		}
	}
	return removed
}
