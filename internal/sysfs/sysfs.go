// Package sysfs reads the kernel's USB device tree from
// /sys/bus/usb/devices and builds topology snapshots. All access goes
// through an fs.FS so tests can substitute a fixture tree.
package sysfs

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/efficientgo/core/errors"

	"usbbw/internal/log"
	"usbbw/internal/model"
)

// DevicesDir is where the kernel exposes one entry per bus, device,
// and interface.
const DevicesDir = "/sys/bus/usb/devices"

// Reader builds topology snapshots from a sysfs-shaped filesystem.
type Reader struct {
	fsys fs.FS
}

// NewReader returns a reader over the live sysfs tree.
func NewReader() *Reader {
	return &Reader{fsys: os.DirFS(DevicesDir)}
}

// NewReaderFS returns a reader over an arbitrary filesystem rooted at
// the devices directory.
func NewReaderFS(fsys fs.FS) *Reader {
	return &Reader{fsys: fsys}
}

// ReadTopology scans the devices directory and assembles a fresh
// topology. Per-device failures are collected as warnings and the
// offending entry is dropped; only a failure to list the directory
// itself aborts the read.
func (r *Reader) ReadTopology() (*model.Topology, []error, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, nil, errors.Wrap(err, "list usb devices")
	}

	top := model.NewTopology()
	var warnings []error

	// Root hubs first: they define the buses and controller pairing.
	for _, e := range entries {
		name := e.Name()
		busNum, ok := rootHubBusNum(name)
		if !ok {
			continue
		}
		bus, err := r.readBus(name, busNum)
		if err != nil {
			warnings = append(warnings, errors.Wrapf(err, "bus %s", name))
			continue
		}
		top.Buses[busNum] = bus

		ctrl, ok := top.Controllers[bus.ControllerID]
		if !ok {
			ctrl = &model.Controller{
				ID:         bus.ControllerID,
				PCIAddress: bus.ControllerID,
				Type:       model.ControllerUSB,
			}
			top.Controllers[ctrl.ID] = ctrl
		}
		if bus.Speed.IsSuperSpeed() {
			ctrl.USB3Bus = busNum
		} else {
			ctrl.USB2Bus = busNum
		}
		if bus.Speed == model.SpeedSuperPlus2 {
			ctrl.Type = model.ControllerUSB4
		}
	}

	// Then every device entry: contains '-', no ':' (interfaces have
	// ':', root hubs were handled above).
	for _, e := range entries {
		name := e.Name()
		if !strings.Contains(name, "-") || strings.Contains(name, ":") {
			continue
		}
		dev, err := r.readDevice(name)
		if err != nil {
			warnings = append(warnings, errors.Wrapf(err, "device %s", name))
			continue
		}
		bus, ok := top.Buses[dev.Path.Bus]
		if !ok {
			warnings = append(warnings, errors.Wrapf(model.ErrMalformedDevice, "device %s on unknown bus %d", name, dev.Path.Bus))
			continue
		}
		bus.Devices[name] = dev
	}

	linkChildren(top)

	if len(warnings) > 0 {
		log.Debug("topology read finished with warnings", "count", len(warnings))
	}
	return top, warnings, nil
}

// rootHubBusNum parses "usbN" entry names.
func rootHubBusNum(name string) (int, bool) {
	numStr, ok := strings.CutPrefix(name, "usb")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(numStr)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// linkChildren fills hub child lists from path parentage. Children of
// the root hub have no in-tree parent.
func linkChildren(top *model.Topology) {
	for _, bus := range top.Buses {
		for _, dev := range bus.Devices {
			parentPath, ok := dev.Path.Parent()
			if !ok {
				continue
			}
			if parent, ok := bus.Devices[parentPath.String()]; ok {
				parent.Children = append(parent.Children, dev.Path)
			}
		}
		for _, dev := range bus.Devices {
			sort.Slice(dev.Children, func(i, j int) bool {
				return dev.Children[i].Compare(dev.Children[j]) < 0
			})
		}
	}
}

func (r *Reader) readBus(name string, busNum int) (*model.Bus, error) {
	speed, err := r.readSpeed(name)
	if err != nil {
		return nil, err
	}
	version, _ := r.attr(name, "version")
	numPorts, _ := r.attrInt(name, "maxchild")

	return &model.Bus{
		Num:          busNum,
		Speed:        speed,
		Version:      version,
		NumPorts:     numPorts,
		ControllerID: r.controllerID(name, busNum),
		Devices:      map[string]*model.Device{},
	}, nil
}

func (r *Reader) readDevice(name string) (*model.Device, error) {
	devPath, err := model.ParsePath(name)
	if err != nil {
		return nil, err
	}
	speed, err := r.readSpeed(name)
	if err != nil {
		return nil, err
	}

	vendorStr, _ := r.attr(name, "idVendor")
	vendorID, err := model.ParseID(vendorStr)
	if err != nil {
		return nil, errors.Wrap(err, "idVendor")
	}
	productStr, _ := r.attr(name, "idProduct")
	productID, err := model.ParseID(productStr)
	if err != nil {
		return nil, errors.Wrap(err, "idProduct")
	}

	dev := &model.Device{
		Path:      devPath,
		Speed:     speed,
		VendorID:  vendorID,
		ProductID: productID,
	}
	dev.Manufacturer, _ = r.attr(name, "manufacturer")
	dev.Product, _ = r.attr(name, "product")
	dev.Serial, _ = r.attr(name, "serial")
	dev.USBVersion, _ = r.attr(name, "version")

	if class, err := r.attrHex8(name, "bDeviceClass"); err == nil {
		dev.Class = class
	}
	dev.IsHub = dev.Class == 0x09
	if dev.IsHub {
		dev.NumPorts, _ = r.attrInt(name, "maxchild")
	}
	if n, err := r.attrInt(name, "bNumInterfaces"); err == nil {
		dev.NumInterfaces = n
	} else {
		dev.NumInterfaces = 1
	}

	// Absent or zero bConfigurationValue is how the kernel reports an
	// enumeration failure, bandwidth exhaustion included.
	if v, err := r.attrInt(name, "bConfigurationValue"); err == nil && v > 0 {
		dev.Configured = true
	}

	if power, err := r.attr(name, "bMaxPower"); err == nil {
		if ma, err := strconv.Atoi(strings.TrimSuffix(power, "mA")); err == nil {
			dev.MaxPowerMA = ma
		}
	}

	dev.Location = r.readLocation(name)

	if dev.Configured {
		dev.Endpoints = r.readEndpoints(name, speed)
	}
	return dev, nil
}

// readEndpoints walks the device's interface directories (names with a
// ':') and decodes every ep_XX entry except the control endpoint
// ep_00. Endpoints that fail to decode are skipped silently; an
// unreadable endpoint never reserves bandwidth anyway.
func (r *Reader) readEndpoints(devName string, speed model.Speed) []model.Endpoint {
	entries, err := fs.ReadDir(r.fsys, devName)
	if err != nil {
		return nil
	}

	var out []model.Endpoint
	for _, e := range entries {
		if !e.IsDir() || !strings.Contains(e.Name(), ":") {
			continue
		}
		ifaceDir := path.Join(devName, e.Name())
		epEntries, err := fs.ReadDir(r.fsys, ifaceDir)
		if err != nil {
			continue
		}
		for _, epe := range epEntries {
			epName := epe.Name()
			if !strings.HasPrefix(epName, "ep_") || epName == "ep_00" {
				continue
			}
			ep, err := r.readEndpoint(path.Join(ifaceDir, epName), speed)
			if err != nil {
				log.Debug("skipping endpoint", "device", devName, "endpoint", epName, "err", err)
				continue
			}
			out = append(out, ep)
		}
	}
	return out
}

func (r *Reader) readEndpoint(epDir string, speed model.Speed) (model.Endpoint, error) {
	typeStr, err := r.attr(epDir, "type")
	if err != nil {
		return model.Endpoint{}, err
	}
	transfer, ok := model.TransferTypeFromSysfs(typeStr)
	if !ok {
		return model.Endpoint{}, errors.Wrapf(model.ErrInvalidEndpoint, "type %q", typeStr)
	}

	dirStr, err := r.attr(epDir, "direction")
	if err != nil {
		return model.Endpoint{}, err
	}
	direction, ok := model.DirectionFromSysfs(dirStr)
	if !ok {
		return model.Endpoint{}, errors.Wrapf(model.ErrInvalidEndpoint, "direction %q", dirStr)
	}

	address, err := r.attrHex8(epDir, "bEndpointAddress")
	if err != nil {
		return model.Endpoint{}, err
	}
	rawPacket, err := r.attrHex16(epDir, "wMaxPacketSize")
	if err != nil {
		return model.Endpoint{}, err
	}
	bInterval, _ := r.attrHex8(epDir, "bInterval")

	// wMaxPacketSize carries the base size in bits 10:0 and, for
	// high-speed high-bandwidth endpoints, extra transactions per
	// microframe in bits 12:11.
	packet := int(rawPacket & 0x07ff)
	extra := int((rawPacket >> 11) & 0x03)

	label, _ := r.attr(epDir, "interval")

	ep, err := model.NewEndpoint(address, transfer, direction, packet, extra, intervalUS(speed, bInterval))
	if err != nil {
		return model.Endpoint{}, err
	}
	ep.IntervalLabel = label
	return ep, nil
}

// intervalUS converts a raw bInterval into microseconds. Low/full
// speed counts in frames of 1 ms; high speed and above counts in
// microframes as 2^(bInterval-1) * 125 us. A zero bInterval is
// clamped to the minimum legal interval rather than rejected: the
// field is meaningless for non-periodic endpoints and some devices
// report 0 there.
func intervalUS(speed model.Speed, bInterval uint8) int {
	frame := speed.FramePeriodUS()
	switch speed {
	case model.SpeedLow, model.SpeedFull:
		if bInterval == 0 {
			return frame
		}
		return int(bInterval) * frame
	default:
		if bInterval == 0 {
			return frame
		}
		exp := int(bInterval) - 1
		if exp > 15 {
			exp = 15
		}
		return (1 << exp) * frame
	}
}

// readLocation reads the optional ACPI physical_location directory.
func (r *Reader) readLocation(devName string) *model.Location {
	locDir := path.Join(devName, "physical_location")
	if _, err := fs.Stat(r.fsys, locDir); err != nil {
		return nil
	}
	loc := &model.Location{}
	if v, err := r.attr(locDir, "dock"); err == nil {
		loc.Dock = v == "yes"
	}
	if v, err := r.attr(locDir, "lid"); err == nil {
		loc.Lid = v == "yes"
	}
	loc.Panel, _ = r.attr(locDir, "panel")
	loc.Horizontal, _ = r.attr(locDir, "horizontal_position")
	loc.Vertical, _ = r.attr(locDir, "vertical_position")
	return loc
}

// readSpeed parses the speed attribute, reported in Mbps. Low speed
// shows up as "1.5".
func (r *Reader) readSpeed(name string) (model.Speed, error) {
	s, err := r.attr(name, "speed")
	if err != nil {
		return model.SpeedUnknown, errors.Wrap(err, "speed")
	}
	mbps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return model.SpeedUnknown, errors.Wrapf(model.ErrMalformedDevice, "speed %q", s)
	}
	speed, ok := model.SpeedFromMbps(int(mbps))
	if !ok {
		// Unrecognized rates are treated as full speed, matching how
		// the kernel degrades unknown links.
		return model.SpeedFull, nil
	}
	return speed, nil
}

// controllerID recovers the PCI address of the host controller from
// the root hub symlink target, e.g.
// ../../devices/pci0000:00/0000:00:14.0/usb1 yields 0000:00:14.0.
// When the filesystem cannot resolve the link the bus number stands
// in, so pairing still works per bus.
func (r *Reader) controllerID(name string, busNum int) string {
	fallback := "bus" + strconv.Itoa(busNum)

	target, err := fs.ReadLink(r.fsys, name)
	if err != nil {
		return fallback
	}
	parts := strings.Split(target, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, "usb") && i > 0 {
			prev := parts[i-1]
			if len(prev) >= 7 && strings.Contains(prev, ":") && strings.Contains(prev, ".") {
				return prev
			}
		}
	}
	return fallback
}

func (r *Reader) attr(dir, name string) (string, error) {
	data, err := fs.ReadFile(r.fsys, path.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Reader) attrInt(dir, name string) (int, error) {
	s, err := r.attr(dir, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrapf(model.ErrMalformedDevice, "attribute %s: %q", name, s)
	}
	return v, nil
}

func (r *Reader) attrHex8(dir, name string) (uint8, error) {
	s, err := r.attr(dir, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, errors.Wrapf(model.ErrMalformedDevice, "attribute %s: %q", name, s)
	}
	return uint8(v), nil
}

func (r *Reader) attrHex16(dir, name string) (uint16, error) {
	s, err := r.attr(dir, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, errors.Wrapf(model.ErrMalformedDevice, "attribute %s: %q", name, s)
	}
	return uint16(v), nil
}
