package services

import "testing"

func TestExtractPublicID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{
			"https://res.cloudinary.com/demo/image/upload/v1712345678/live_class_thumbnails/yoga.jpg",
			"live_class_thumbnails/yoga",
		},
		{
			"https://res.cloudinary.com/demo/image/upload/live_class_thumbnails/math.png",
			"live_class_thumbnails/math",
		},
		{
			"https://res.cloudinary.com/demo/image/upload/vintage/cover.jpg",
			"vintage/cover",
		},
		{
			"https://example.com/no/upload/path.jpg",
			"path",
		},
		{
			"https://example.com/just-a-file.jpg",
			"",
		},
	}

	for _, tc := range cases {
		if got := ExtractPublicID(tc.url); got != tc.want {
			t.Errorf("ExtractPublicID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
