package loopclosure

import (
	"context"

	"github.com/roboswarm/loopclosure/bow"
	"github.com/roboswarm/loopclosure/spatial"
	"github.com/roboswarm/loopclosure/vlc"
)

// BowMessage is one place descriptor arriving from the transport, from
// ourselves or a peer.
type BowMessage struct {
	RobotID uint16
	PoseID  uint32
	Vector  bow.Vector
}

// ByteSize approximates the wire size of the message: a fixed header plus
// one (word, weight) pair per entry.
func (m *BowMessage) ByteSize() int {
	return 8 + 8*len(m.Vector)
}

// VLCRequests asks a peer for the frames of the listed vertices.
type VLCRequests struct {
	From uint16
	To   uint16
	IDs  []vlc.VertexID
}

// VLCResponses carries frames answering a VLCRequests message. Frames the
// peer could not resolve are omitted.
type VLCResponses struct {
	From   uint16
	To     uint16
	Frames []*vlc.Frame
}

// ByteSize approximates the wire size of the carried frames: per frame a
// vertex header, 12 bytes per keypoint, and the raw descriptor bytes. Nil
// frames are skipped.
func (m *VLCResponses) ByteSize() int {
	total := 4
	for _, f := range m.Frames {
		if f == nil {
			continue
		}
		total += 8 + 12*len(f.Keypoints)
		for _, d := range f.Descriptors {
			total += len(d)
		}
	}
	return total
}

// Edge is a verified loop closure: a relative pose constraint between two
// pose graph vertices. Pose maps points from the Src (query) frame into
// the Dst (match) frame.
type Edge struct {
	Src  vlc.VertexID
	Dst  vlc.VertexID
	Pose spatial.Pose
}

// Transport publishes outbound messages. Delivery is best effort;
// publish errors are logged. Ids of a failed frame request stay
// requestable on later ticks; failed responses and edges are not resent.
type Transport interface {
	// PublishVLCRequests sends a frame request batch to the peer named in
	// req.To.
	PublishVLCRequests(ctx context.Context, req VLCRequests) error
	// PublishVLCResponses answers a peer's frame request.
	PublishVLCResponses(ctx context.Context, resp VLCResponses) error
	// PublishEdge streams a verified edge to the downstream consumer.
	PublishEdge(ctx context.Context, edge Edge) error
}

// LocalFrameService is the capability, provided by the VIO front end, to
// resolve our own poses into frames. Calls block until the front end
// answers and are serialized by the service.
type LocalFrameService interface {
	FetchLocalFrame(ctx context.Context, pose uint32) (*vlc.Frame, error)
}
