package trigger

// StreamPayload is the decoded body of one stream record, as emitted by a
// face-search stream processor. Every level may be absent.
type StreamPayload struct {
	InputInformation   *InputInformation    `json:"InputInformation,omitempty"`
	FaceSearchResponse []FaceSearchResponse `json:"FaceSearchResponse,omitempty"`
}

// InputInformation describes the video fragment the result was produced from.
type InputInformation struct {
	KinesisVideo *KinesisVideo `json:"KinesisVideo,omitempty"`
}

// KinesisVideo locates the source video fragment.
type KinesisVideo struct {
	StreamArn            string  `json:"StreamArn,omitempty"`
	FragmentNumber       string  `json:"FragmentNumber,omitempty"`
	ServerTimestamp      float64 `json:"ServerTimestamp,omitempty"`
	ProducerTimestamp    float64 `json:"ProducerTimestamp,omitempty"`
	FrameOffsetInSeconds float64 `json:"FrameOffsetInSeconds,omitempty"`
}

// FaceSearchResponse groups the collection matches for one detected face.
type FaceSearchResponse struct {
	DetectedFace *DetectedFace `json:"DetectedFace,omitempty"`
	MatchedFaces []MatchedFace `json:"MatchedFaces,omitempty"`
}

// DetectedFace is the face found in the frame.
type DetectedFace struct {
	Confidence float64 `json:"Confidence,omitempty"`
}

// MatchedFace is one collection match.
type MatchedFace struct {
	Similarity float64 `json:"Similarity,omitempty"`
	Face       *Face   `json:"Face,omitempty"`
}

// Face is the indexed face that matched.
type Face struct {
	FaceID          string  `json:"FaceId,omitempty"`
	ImageID         string  `json:"ImageId,omitempty"`
	ExternalImageID string  `json:"ExternalImageId,omitempty"`
	Confidence      float64 `json:"Confidence,omitempty"`
}

// ExternalImageIDs returns every non-empty ExternalImageId in encounter
// order. Duplicates are kept.
func (p *StreamPayload) ExternalImageIDs() []string {
	if p == nil {
		return nil
	}
	var ids []string
	for _, response := range p.FaceSearchResponse {
		for _, matched := range response.MatchedFaces {
			if matched.Face == nil || matched.Face.ExternalImageID == "" {
				continue
			}
			ids = append(ids, matched.Face.ExternalImageID)
		}
	}
	return ids
}
