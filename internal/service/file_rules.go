package service

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/noah-isme/projecthub-api/internal/models"
)

const (
	mib = 1024 * 1024

	// uncategorized resolves to no allow-list and the default size ceiling. It
	// is never persisted.
	uncategorized models.FileCategory = "uncategorized"
)

type categoryRule struct {
	mimeTypes  map[string]struct{}
	extensions []string
	maxBytes   int64
}

func stringSet(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

var (
	pdfAndOfficeMIMEs = []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
	recordMIMEs      = append(append([]string{}, pdfAndOfficeMIMEs...), "image/jpeg", "image/png")
	recordExtensions = []string{"pdf", "doc", "docx", "xls", "xlsx", "jpg", "jpeg", "png"}

	defaultMaxBytes int64 = 50 * mib

	categoryRules = map[models.FileCategory]categoryRule{
		models.CategoryVideos: {
			mimeTypes: stringSet(
				"video/mp4", "video/mpeg", "video/quicktime", "video/x-msvideo", "video/x-ms-wmv",
				"video/webm", "video/ogg", "video/3gpp", "video/x-matroska",
			),
			extensions: []string{"mp4", "mpeg", "mpg", "mov", "avi", "wmv", "webm", "ogv", "3gp", "mkv"},
			maxBytes:   500 * mib,
		},
		models.CategoryInvoices: {
			mimeTypes:  stringSet(recordMIMEs...),
			extensions: recordExtensions,
			maxBytes:   10 * mib,
		},
		models.CategoryLicenses: {
			mimeTypes:  stringSet(recordMIMEs...),
			extensions: recordExtensions,
			maxBytes:   10 * mib,
		},
		models.CategoryDocuments: {
			mimeTypes: stringSet(append(append([]string{}, pdfAndOfficeMIMEs...),
				"application/vnd.ms-powerpoint",
				"application/vnd.openxmlformats-officedocument.presentationml.presentation",
				"text/plain",
				"text/csv",
			)...),
			extensions: []string{"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "csv"},
			maxBytes:   10 * mib,
		},
		models.CategoryImages: {
			mimeTypes:  stringSet("image/jpeg", "image/png", "image/gif", "image/webp", "image/svg+xml", "image/bmp"),
			extensions: []string{"jpg", "jpeg", "png", "gif", "webp", "svg", "bmp"},
			maxBytes:   5 * mib,
		},
	}

	// Invoices and licenses only accept subsets of documents and images, so
	// they are reached through the keyword override rather than direct lookup.
	lookupOrder = []models.FileCategory{models.CategoryVideos, models.CategoryDocuments, models.CategoryImages}

	invoiceKeywords = []string{"invoice", "bill", "receipt"}
	licenseKeywords = []string{"license", "agreement", "contract"}
)

// CategorizeFile resolves the category of a descriptor from its MIME type,
// then filename keywords, then extension. It defaults to documents.
func CategorizeFile(desc models.FileDescriptor) models.FileCategory {
	mimeType := normalizeMIME(desc.MimeType)
	for _, category := range lookupOrder {
		if _, ok := categoryRules[category].mimeTypes[mimeType]; ok {
			return keywordOverride(category, desc.Name)
		}
	}

	if ext := fileExtension(desc.Name); ext != "" {
		for _, category := range lookupOrder {
			if containsString(categoryRules[category].extensions, ext) {
				return keywordOverride(category, desc.Name)
			}
		}
	}

	return models.CategoryDocuments
}

// keywordOverride moves documents and images into invoices or licenses when the
// filename says so. The target's allow-list is enforced later by ValidateFile.
func keywordOverride(category models.FileCategory, name string) models.FileCategory {
	if category != models.CategoryDocuments && category != models.CategoryImages {
		return category
	}
	lower := strings.ToLower(name)
	if containsAny(lower, invoiceKeywords) {
		return models.CategoryInvoices
	}
	if containsAny(lower, licenseKeywords) {
		return models.CategoryLicenses
	}
	return category
}

// ValidateFile checks a descriptor against the rules of category, inferring
// the category when it is empty.
func ValidateFile(desc models.FileDescriptor, category models.FileCategory) models.ValidationResult {
	if category == "" {
		category = CategorizeFile(desc)
	}
	if desc.SizeBytes <= 0 {
		return models.ValidationResult{Reason: "empty file"}
	}

	rule, known := categoryRules[category]
	if !known {
		rule = categoryRule{maxBytes: defaultMaxBytes}
	}
	if len(rule.mimeTypes) > 0 {
		if _, ok := rule.mimeTypes[normalizeMIME(desc.MimeType)]; !ok {
			return models.ValidationResult{Reason: fmt.Sprintf(
				"file type %q is not allowed for %s; allowed extensions: %s",
				desc.MimeType, category, strings.Join(rule.extensions, ", "),
			)}
		}
	}
	if desc.SizeBytes > rule.maxBytes {
		return models.ValidationResult{Reason: fmt.Sprintf(
			"file size %s exceeds the %s limit for %s",
			FormatFileSize(desc.SizeBytes), FormatFileSize(rule.maxBytes), category,
		)}
	}
	return models.ValidationResult{Valid: true}
}

// ValidateFiles evaluates every descriptor independently.
func ValidateFiles(descs []models.FileDescriptor) models.ValidationReport {
	report := models.ValidationReport{
		Valid:   make([]models.FileDescriptor, 0, len(descs)),
		Invalid: make([]models.FileDescriptor, 0),
		Reasons: make([]string, 0),
	}
	for _, desc := range descs {
		result := ValidateFile(desc, "")
		if result.Valid {
			report.Valid = append(report.Valid, desc)
			continue
		}
		report.Invalid = append(report.Invalid, desc)
		report.Reasons = append(report.Reasons, desc.Name+": "+result.Reason)
	}
	return report
}

// FormatFileSize renders a byte count with binary steps: 1536 → "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + units[unit]
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

func fileExtension(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
