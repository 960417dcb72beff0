package meetings

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	config "github.com/rishabh2304/liveclass_backend/configs"
)

const (
	zoomTokenURL   = "https://zoom.us/oauth/token"
	zoomMeetingURL = "https://api.zoom.us/v2/users/me/meetings"
)

type ZoomMeeting struct {
	MeetingID string
	JoinLink  string
	Password  string
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

var (
	zoomToken       string
	zoomTokenExpiry time.Time
	tokenMutex      sync.RWMutex
)

func getZoomAccessToken() (string, error) {
	tokenMutex.RLock()
	if zoomToken != "" && time.Now().Before(zoomTokenExpiry) {
		token := zoomToken
		tokenMutex.RUnlock()
		return token, nil
	}
	tokenMutex.RUnlock()

	tokenMutex.Lock()
	defer tokenMutex.Unlock()

	if zoomToken != "" && time.Now().Before(zoomTokenExpiry) {
		return zoomToken, nil
	}

	log.Println("Fetching new Zoom access token...")
	accountID := config.Config("ZOOM_ACCOUNT_ID")
	clientID := config.Config("ZOOM_CLIENT_ID")
	clientSecret := config.Config("ZOOM_CLIENT_SECRET")

	form := url.Values{}
	form.Set("grant_type", "account_credentials")
	form.Set("account_id", accountID)

	req, err := http.NewRequest("POST", zoomTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("zoom token API returned non-200 status: %s", resp.Status)
	}

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}

	zoomToken = tokenResp.AccessToken
	zoomTokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-300) * time.Second)

	return zoomToken, nil
}

// CreateZoomMeeting provisions a scheduled meeting for the given window.
// Called exactly once per session (or per module), at creation time.
func CreateZoomMeeting(title string, startTime, endTime time.Time) (*ZoomMeeting, error) {
	token, err := getZoomAccessToken()
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"topic":      title,
		"type":       2,
		"start_time": startTime.UTC().Format(time.RFC3339),
		"duration":   int(math.Ceil(endTime.Sub(startTime).Minutes())),
		"timezone":   "Asia/Kolkata",
		"settings": map[string]interface{}{
			"host_video":        true,
			"participant_video": true,
			"join_before_host":  false,
			"mute_upon_entry":   true,
			"waiting_room":      true,
		},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequest("POST", zoomMeetingURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create zoom meeting: %s", string(respBody))
	}

	var meetingResp struct {
		ID       int64  `json:"id"`
		JoinURL  string `json:"join_url"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meetingResp); err != nil {
		return nil, err
	}

	return &ZoomMeeting{
		MeetingID: fmt.Sprintf("%d", meetingResp.ID),
		JoinLink:  meetingResp.JoinURL,
		Password:  meetingResp.Password,
	}, nil
}
