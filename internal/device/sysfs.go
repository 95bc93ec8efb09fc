package device

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
)

const (
	scanElementsDir = "scan_elements"
	bufferDir       = "buffer"
	triggerDir      = "trigger"
	devicePrefix    = "iio:device"
	triggerPrefix   = "trigger"
)

// Sysfs is the local Linux IIO backend.
type Sysfs struct {
	root    string
	devRoot string
}

// NewSysfs returns a backend reading devices below root (normally
// /sys/bus/iio/devices) and opening their character devices in devRoot.
func NewSysfs(root, devRoot string) (*Sysfs, error) {
	errFactory := errors.New()

	if _, err := os.Stat(root); err != nil {
		return nil, errFactory.Wrap(ErrBackendInit, err)
	}

	return &Sysfs{root: root, devRoot: devRoot}, nil
}

// FindDevice looks a device or trigger up by name first, then by id.
func (s *Sysfs) FindDevice(id string) (Device, error) {
	errFactory := errors.New()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errFactory.Wrap(ErrBackendInit, err)
	}

	var byID string
	for _, e := range entries {
		dirID := e.Name()
		if !strings.HasPrefix(dirID, devicePrefix) && !strings.HasPrefix(dirID, triggerPrefix) {
			continue
		}
		if name, err := readAttr(filepath.Join(s.root, dirID, "name")); err == nil && name == id {
			return s.openDevice(dirID, name)
		}
		if dirID == id {
			byID = dirID
		}
	}

	if byID != "" {
		name, _ := readAttr(filepath.Join(s.root, byID, "name"))
		return s.openDevice(byID, name)
	}

	return nil, errFactory.WithData(ErrDeviceNotFound, id)
}

func (*Sysfs) Close() error {
	return nil
}

func (s *Sysfs) openDevice(id, name string) (*sysfsDevice, error) {
	d := &sysfsDevice{
		id:      id,
		name:    name,
		dir:     filepath.Join(s.root, id),
		devPath: filepath.Join(s.devRoot, id),
	}

	if !d.IsTrigger() {
		if err := d.scanChannels(); err != nil {
			return nil, err
		}
	}

	logger.Debug().
		Str("id", id).
		Str("name", name).
		Int("channels", len(d.channels)).
		Msg("IIO device opened")

	return d, nil
}

type sysfsChannel struct {
	info  ChannelInfo
	index int
	base  string
}

type sysfsDevice struct {
	id       string
	name     string
	dir      string
	devPath  string
	channels []sysfsChannel
}

func (d *sysfsDevice) ID() string   { return d.id }
func (d *sysfsDevice) Name() string { return d.name }

func (d *sysfsDevice) IsTrigger() bool {
	return strings.HasPrefix(d.id, triggerPrefix)
}

// scanChannels builds the channel list from scan_elements/*_en, sorted by
// scan index.
func (d *sysfsDevice) scanChannels() error {
	errFactory := errors.New()

	dir := filepath.Join(d.dir, scanElementsDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errFactory.Wrap(ErrScanElementRead, err)
	}

	for _, e := range entries {
		base, ok := strings.CutSuffix(e.Name(), "_en")
		if !ok {
			continue
		}

		ch := sysfsChannel{base: base}
		ch.info.ID = channelID(base)

		index, err := readAttr(filepath.Join(dir, base+"_index"))
		if err != nil {
			return errFactory.Wrap(ErrScanElementRead, err)
		}
		if ch.index, err = strconv.Atoi(index); err != nil {
			return errFactory.Wrap(ErrScanElementRead, err)
		}

		typ, err := readAttr(filepath.Join(dir, base+"_type"))
		if err != nil {
			return errFactory.Wrap(ErrScanElementRead, err)
		}
		if ch.info.Format, err = ParseFormat(typ); err != nil {
			return err
		}

		if en, err := readAttr(filepath.Join(dir, e.Name())); err == nil {
			ch.info.Enabled = en == "1"
		}

		ch.info.Scale, ch.info.HasScale = d.channelScale(base)
		d.channels = append(d.channels, ch)
	}

	sort.Slice(d.channels, func(i, j int) bool {
		return d.channels[i].index < d.channels[j].index
	})

	return nil
}

// channelScale reads <base>_scale, falling back to the attribute shared by
// every channel of the same type (in_power_scale for in_power0).
func (d *sysfsDevice) channelScale(base string) (string, bool) {
	if v, err := readAttr(filepath.Join(d.dir, base+"_"+AttrScale)); err == nil {
		return v, true
	}

	shared := strings.TrimRight(base, "0123456789")
	if shared != base {
		if v, err := readAttr(filepath.Join(d.dir, shared+"_"+AttrScale)); err == nil {
			return v, true
		}
	}

	return "", false
}

// channelID strips the direction prefix: in_voltage0 -> voltage0.
func channelID(base string) string {
	for _, prefix := range []string{"in_", "out_"} {
		if id, ok := strings.CutPrefix(base, prefix); ok {
			return id
		}
	}
	return base
}

func (d *sysfsDevice) Channels() []ChannelInfo {
	out := make([]ChannelInfo, len(d.channels))
	for i, ch := range d.channels {
		out[i] = ch.info
	}
	return out
}

func (d *sysfsDevice) ReadAttr(name string) (string, error) {
	errFactory := errors.New()

	v, err := readAttr(filepath.Join(d.dir, name))
	if err != nil {
		return "", errFactory.WithData(ErrAttrRead, struct {
			Device string
			Attr   string
			Error  string
		}{d.id, name, err.Error()})
	}
	return v, nil
}

func (d *sysfsDevice) WriteAttr(name, value string) error {
	errFactory := errors.New()

	if err := writeAttr(filepath.Join(d.dir, name), value); err != nil {
		return errFactory.WithData(ErrAttrWrite, struct {
			Device string
			Attr   string
			Error  string
		}{d.id, name, err.Error()})
	}
	return nil
}

func (d *sysfsDevice) EnableChannel(id string) error {
	return d.setChannel(id, true)
}

func (d *sysfsDevice) DisableChannel(id string) error {
	return d.setChannel(id, false)
}

func (d *sysfsDevice) setChannel(id string, enable bool) error {
	errFactory := errors.New()

	for i := range d.channels {
		ch := &d.channels[i]
		if ch.info.ID != id {
			continue
		}

		value := "0"
		if enable {
			value = "1"
		}
		path := filepath.Join(d.dir, scanElementsDir, ch.base+"_en")
		if err := writeAttr(path, value); err != nil {
			return errFactory.Wrap(ErrChannelEnable, err)
		}
		ch.info.Enabled = enable

		return nil
	}

	return errFactory.WithData(ErrUnknownChannel, id)
}

func (d *sysfsDevice) SetTrigger(trigger Device) error {
	errFactory := errors.New()

	if !trigger.IsTrigger() {
		return errFactory.WithData(ErrNotATrigger, trigger.ID())
	}

	path := filepath.Join(d.dir, triggerDir, "current_trigger")
	if err := writeAttr(path, trigger.Name()); err != nil {
		return errFactory.WithData(ErrAttrWrite, struct {
			Device string
			Attr   string
			Error  string
		}{d.id, "trigger/current_trigger", err.Error()})
	}

	return nil
}

func (d *sysfsDevice) CreateBuffer(sampleSets int) (Buffer, error) {
	errFactory := errors.New()

	enabled := EnabledChannels(d.Channels())
	if len(enabled) == 0 {
		return nil, errFactory.New(errors.ErrNoChannelsEnabled)
	}

	length := strconv.Itoa(sampleSets)
	if err := writeAttr(filepath.Join(d.dir, bufferDir, "length"), length); err != nil {
		return nil, errFactory.Wrap(ErrBufferAlloc, err)
	}
	if err := writeAttr(filepath.Join(d.dir, bufferDir, "enable"), "1"); err != nil {
		return nil, errFactory.Wrap(ErrBufferAlloc, err)
	}

	f, err := os.Open(d.devPath)
	if err != nil {
		_ = writeAttr(filepath.Join(d.dir, bufferDir, "enable"), "0")
		return nil, errFactory.Wrap(ErrBufferAlloc, err)
	}

	return &sysfsBuffer{
		scanBuffer: newScanBuffer(enabled, sampleSets),
		file:       f,
		enablePath: filepath.Join(d.dir, bufferDir, "enable"),
	}, nil
}

type sysfsBuffer struct {
	*scanBuffer
	file       *os.File
	enablePath string
}

func (b *sysfsBuffer) Refill(ctx context.Context) error {
	errFactory := errors.New()
	b.sets = 0

	if err := ctx.Err(); err != nil {
		return err
	}

	// Character devices support deadlines; regular files used for replay
	// do not, and do not block either.
	stop := context.AfterFunc(ctx, func() {
		_ = b.file.SetReadDeadline(time.Now())
	})
	defer stop()

	_, err := io.ReadFull(b.file, b.data)
	switch {
	case err == nil:
		b.sets = len(b.data) / b.setSize
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return io.EOF
	default:
		return errFactory.Wrap(ErrBufferRefill, err)
	}
}

func (b *sysfsBuffer) Close() error {
	errFactory := errors.New()

	err := b.file.Close()
	if werr := writeAttr(b.enablePath, "0"); werr != nil && err == nil {
		err = werr
	}
	if err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}
	return nil
}

func readAttr(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func writeAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
