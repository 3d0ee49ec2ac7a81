package attachments

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthRequired   = errors.New("Please sign in to upload images. Images are saved securely to your account.")
	ErrBucketNotFound = errors.New("storage bucket not found")
	ErrPolicyDenied   = errors.New("permission denied: storage policies not set up correctly")
	ErrSessionExpired = errors.New("authentication error: your session may have expired")
)

var (
	bucketHints  = []string{"bucket", "not found", "the resource was not found", "nosuchbucket"}
	policyHints  = []string{"policy", "permission", "row-level security", "new row violates", "access denied"}
	sessionHints = []string{"jwt", "auth", "token", "unauthorized"}
)

// classifyUpload maps upstream failure text onto the cases users can act on.
func classifyUpload(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, bucketHints):
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	case containsAny(msg, policyHints):
		return fmt.Errorf("%w: %v", ErrPolicyDenied, err)
	case containsAny(msg, sessionHints):
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	default:
		return fmt.Errorf("upload failed: %w", err)
	}
}

func classifySign(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "bucket") || strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %v", ErrBucketNotFound, err)
	}
	return fmt.Errorf("failed to create signed URL: %w", err)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// Remediation is the text shown to the user for an upload failure.
func Remediation(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuthRequired), errors.Is(err, ErrNotImage), errors.Is(err, ErrTooLarge):
		return err.Error()
	case errors.Is(err, ErrBucketNotFound):
		return "Storage bucket not found. Create the bucket and its access policies in your storage project, then try again."
	case errors.Is(err, ErrPolicyDenied):
		return "Permission denied: storage policies are not set up correctly. Apply the bucket's upload and read policies, then try again."
	case errors.Is(err, ErrSessionExpired):
		return "Authentication error: your session may have expired. Please sign out and sign in again."
	default:
		return err.Error()
	}
}
