package services

import (
	"context"
	"log"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	config "github.com/rishabh2304/liveclass_backend/configs"
)

const ThumbnailFolder = "live_class_thumbnails"

// DeleteThumbnail removes a previously uploaded thumbnail. Best-effort:
// failures are logged and swallowed, never bubbled into the request that
// replaced or deleted the session.
func DeleteThumbnail(thumbnailURL string) {
	if thumbnailURL == "" {
		return
	}

	publicID := ExtractPublicID(thumbnailURL)
	if publicID == "" {
		log.Printf("Could not extract public id from thumbnail URL %s, skipping delete", thumbnailURL)
		return
	}

	cld, err := cloudinary.NewFromURL(config.Config("CLOUDINARY_URL"))
	if err != nil {
		log.Printf("🔥 Failed to initialize Cloudinary for thumbnail delete: %v", err)
		return
	}

	if _, err := cld.Upload.Destroy(context.Background(), uploader.DestroyParams{PublicID: publicID}); err != nil {
		log.Printf("🔥 Failed to delete thumbnail %s: %v", publicID, err)
	}
}

// ExtractPublicID pulls the Cloudinary public id (folder/name, no version
// prefix, no extension) out of a delivery URL.
func ExtractPublicID(thumbnailURL string) string {
	idx := strings.Index(thumbnailURL, "/upload/")
	if idx < 0 {
		return ""
	}
	path := thumbnailURL[idx+len("/upload/"):]

	if strings.HasPrefix(path, "v") {
		if slash := strings.Index(path, "/"); slash > 0 {
			version := path[1:slash]
			if version != "" && strings.Trim(version, "0123456789") == "" {
				path = path[slash+1:]
			}
		}
	}

	if dot := strings.LastIndex(path, "."); dot > 0 {
		path = path[:dot]
	}
	return path
}
