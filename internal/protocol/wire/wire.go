// Package wire defines the REST payloads exchanged with the service.
package wire

import "time"

// Device is the registration record returned by POST devices.
type Device struct {
	URL      string         `json:"url"`
	UserID   string         `json:"userId,omitempty"`
	Name     string         `json:"name,omitempty"`
	Services DeviceServices `json:"services"`
	// WebSocketURL is the push endpoint assigned to this device.
	WebSocketURL string `json:"webSocketUrl,omitempty"`
}

// DeviceServices lists service endpoints advertised at registration.
type DeviceServices struct {
	KMSServiceURL          string `json:"kmsServiceUrl,omitempty"`
	ConversationServiceURL string `json:"conversationServiceUrl,omitempty"`
	LocusServiceURL        string `json:"locusServiceUrl,omitempty"`
}

// DeviceRequest is the body of POST devices.
type DeviceRequest struct {
	DeviceName string `json:"deviceName"`
	DeviceType string `json:"deviceType"`
	Model      string `json:"model,omitempty"`
}

// Person is a user record.
type Person struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"emailAddress,omitempty"`
}

// KMSInfo describes the KMS cluster serving a user.
type KMSInfo struct {
	KMSCluster      string `json:"kmsCluster"`
	StaticPublicKey string `json:"staticPublicKey"`
}

// KMSMessages is the body of POST kms/messages and the payload of KMS push
// events.
type KMSMessages struct {
	KMSMessages []string `json:"kmsMessages"`
	Destination string   `json:"destination,omitempty"`
}

// Conversation is a space descriptor.
type Conversation struct {
	ID                              string       `json:"id"`
	DisplayName                     string       `json:"displayName,omitempty"`
	DefaultActivityEncryptionKeyURL string       `json:"defaultActivityEncryptionKeyUrl,omitempty"`
	KMSResourceObjectURL            string       `json:"kmsResourceObjectUrl,omitempty"`
	Participants                    Participants `json:"participants"`
}

// Participants wraps the conversation roster.
type Participants struct {
	Items []Person `json:"items"`
}

// Activity verbs.
const (
	VerbPost      = "post"
	VerbShare     = "share"
	VerbDelete    = "delete"
	VerbUpdate    = "update"
	VerbUpdateKey = "updateKey"
)

// Activity is a conversation event such as a posted or deleted message.
type Activity struct {
	ID               string          `json:"id,omitempty"`
	ObjectType       string          `json:"objectType"`
	Verb             string          `json:"verb"`
	Actor            *Person         `json:"actor,omitempty"`
	Object           ActivityObject  `json:"object"`
	Target           *ActivityTarget `json:"target,omitempty"`
	Parent           *ActivityParent `json:"parent,omitempty"`
	EncryptionKeyURL string          `json:"encryptionKeyUrl,omitempty"`
	Published        time.Time       `json:"published,omitempty"`
	ClientTempID     string          `json:"clientTempId,omitempty"`
}

// ActivityObject is the payload an activity acts on.
type ActivityObject struct {
	ID                              string     `json:"id,omitempty"`
	ObjectType                      string     `json:"objectType"`
	DisplayName                     string     `json:"displayName,omitempty"`
	Content                         string     `json:"content,omitempty"`
	DefaultActivityEncryptionKeyURL string     `json:"defaultActivityEncryptionKeyUrl,omitempty"`
	Files                           *FileItems `json:"files,omitempty"`
}

// ActivityTarget identifies the conversation an activity belongs to.
type ActivityTarget struct {
	ID         string `json:"id"`
	ObjectType string `json:"objectType"`
}

// ActivityParent links an edit to the activity it replaces.
type ActivityParent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FileItems wraps uploaded file descriptors.
type FileItems struct {
	Items []File `json:"items"`
}

// File is an uploaded file reference.
type File struct {
	URL         string `json:"url"`
	DisplayName string `json:"displayName,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ActivityList is the response of GET activities.
type ActivityList struct {
	Items []Activity `json:"items"`
}

// UploadSession is the response of POST files/upload_sessions.
type UploadSession struct {
	UploadURL       string `json:"uploadUrl"`
	FinishUploadURL string `json:"finishUploadUrl"`
}

// UploadSessionRequest is the body of POST files/upload_sessions.
type UploadSessionRequest struct {
	FileSize int64 `json:"fileSize"`
}

// UploadChunk is the body of a PUT to an upload URL.
type UploadChunk struct {
	Offset int64  `json:"offset"`
	Data   []byte `json:"data"`
}

// FinishUploadRequest is the body of POST to a finish upload URL.
type FinishUploadRequest struct {
	FileSize int64 `json:"fileSize"`
}

// FinishedUpload is the response of a finished upload.
type FinishedUpload struct {
	URL string `json:"url"`
}
