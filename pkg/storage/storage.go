package storage

import (
	"k8s.io/klog/v2"
	"os/user"
	"path/filepath"
)

// Display values written to the document.
const (
	ConveyorStandby = "En espera"
	ConveyorPowered = "Encendido"
	ConveyorForward = "Adelante"
	ConveyorReverse = "Reversa"

	RobotWorking = "trabajando"
	RobotStopped = "detenido"
	RobotDone    = "terminado"
)

const (
	MaxLogEntries   = 100
	RobotTotalLines = 100
)

// Top-level sections every persisted document must carry.
const (
	SectionConveyor = "plc1"
	SectionMixer    = "plc2"
	SectionPacker   = "plc3"
	SectionRobot    = "robot"
	SectionLog      = "log"
)

var RequiredSections = []string{SectionConveyor, SectionMixer, SectionPacker, SectionRobot, SectionLog}

// StateStore is the canonical, persisted snapshot shared by the poller and the
// action layer. Every call is serialized.
type StateStore interface {
	// Load never fails on a damaged document: it falls back to the backup, then
	// to defaults, and persists the result.
	Load() (*Document, error)
	Save(doc *Document) error
	AppendLog(message string) error
	Update(fn func(doc *Document) error) (*Document, error)
	// Merge replaces top-level sections already present in the document with the
	// ones in patch and ignores unknown keys.
	Merge(patch []byte) (*Document, error)
}

type Document struct {
	Conveyor ConveyorState `json:"plc1"`
	Mixer    MachineState  `json:"plc2"`
	Packer   MachineState  `json:"plc3"`
	Robot    RobotState    `json:"robot"`
	Log      []string      `json:"log"`
}

type ConveyorState struct {
	State  string         `json:"state"`
	Lights ConveyorLights `json:"focos"`
}

type ConveyorLights struct {
	Powered bool `json:"encendido"`
	Forward bool `json:"adelante"`
	Reverse bool `json:"reversa"`
}

type MachineState struct {
	Progress int           `json:"progress"`
	Lights   MachineLights `json:"focos"`
}

type MachineLights struct {
	Detected bool `json:"deteccion"`
	Working  bool `json:"trabajando"`
}

type RobotState struct {
	Status     string `json:"foco"`
	GcodeLine  int    `json:"gcode_line"`
	TotalLines int    `json:"total_lines"`
}

func NewDefaultDocument() *Document {
	return &Document{
		Conveyor: ConveyorState{State: ConveyorStandby},
		Robot:    RobotState{Status: RobotStopped, TotalLines: RobotTotalLines},
		Log:      []string{},
	}
}

// AppendLog adds an audit entry, keeping only the most recent MaxLogEntries.
func (d *Document) AppendLog(message string) {
	d.Log = append(d.Log, message)
	if len(d.Log) > MaxLogEntries {
		d.Log = append([]string(nil), d.Log[len(d.Log)-MaxLogEntries:]...)
	}
}

func (d *Document) DeepCopy() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Log = append(make([]string, 0, len(d.Log)), d.Log...)
	return &out
}

func DefaultStatePath() string {
	if u, err := user.Current(); err == nil {
		return filepath.Join(u.HomeDir, "scadabridge", "db.json")
	} else {
		klog.ErrorS(err, "Failed to get home dir")
		return filepath.Join(".", "scadabridge", "db.json")
	}
}
