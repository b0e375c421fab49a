package utils

// Helper functions
func StringPtr(s string) *string {
	return &s
}

func StringPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func Int64PtrValue(i *int64) int64 {
	if i == nil {
		return 0
	}
	return *i
}
