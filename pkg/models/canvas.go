package models

// TriggerNodeID is the reserved identity of the synthetic trigger node
// in the derived canvas graph. Step ids are uuids, so it can never
// collide with one.
const TriggerNodeID = "__trigger__"

// NodeKind drives node rendering tone only; it never gates interaction.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindStep      NodeKind = "step"
	NodeKindCondition NodeKind = "condition"
)

// CanvasNode is one renderable node of the derived graph.
type CanvasNode struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle,omitempty"`
	Tone     string   `json:"tone"`
}

// CanvasEdge connects a node to its structural successor. Branch edges
// carry the branch outcome as their label.
type CanvasEdge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// CanvasGraph is derived, disposable state: it is fully recomputed from
// the trigger and step tree, never patched incrementally.
type CanvasGraph struct {
	Nodes []CanvasNode `json:"nodes"`
	Edges []CanvasEdge `json:"edges"`
}

// NodeByID returns the node with the given id, or nil.
func (g CanvasGraph) NodeByID(id string) *CanvasNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}

	return nil
}

// OutgoingEdges returns every edge leaving the given node, in emission
// order.
func (g CanvasGraph) OutgoingEdges(nodeID string) []CanvasEdge {
	var out []CanvasEdge

	for _, edge := range g.Edges {
		if edge.From == nodeID {
			out = append(out, edge)
		}
	}

	return out
}

// CanvasPosition is a node's free-form placement in canvas pixel space.
// Positions are display-only: they are never part of the compiled
// transport payload.
type CanvasPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeBounds is the fixed bounding box used for marquee hit-testing.
type NodeBounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether two boxes overlap.
func (b NodeBounds) Intersects(other NodeBounds) bool {
	return b.X < other.X+other.Width &&
		b.X+b.Width > other.X &&
		b.Y < other.Y+other.Height &&
		b.Y+b.Height > other.Y
}
