package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Lightning talk CSV column positions (0-indexed), matching the export
// format of the submission sheet: speaker in C, institution in D,
// title in F, abstract in G, track in H.
const (
	talkColSpeaker     = 2
	talkColInstitution = 3
	talkColTitle       = 5
	talkColAbstract    = 6
	talkColTrack       = 7
)

// LoadTalksCSV reads lightning talks from a positional CSV export.
// The header row is skipped; rows shorter than the track column or
// without a title are ignored.
func LoadTalksCSV(path string) ([]LightningTalk, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open talks csv: %v", ErrRoster, err)
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1

	var talks []LightningTalk
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse talks csv: %v", ErrRoster, err)
		}
		if first {
			first = false
			continue
		}
		if len(row) <= talkColTrack {
			continue
		}
		title := strings.TrimSpace(row[talkColTitle])
		if title == "" {
			continue
		}
		talks = append(talks, LightningTalk{
			Title:       title,
			Speaker:     strings.TrimSpace(row[talkColSpeaker]),
			Institution: strings.TrimSpace(row[talkColInstitution]),
			Abstract:    strings.TrimSpace(row[talkColAbstract]),
			Track:       strings.TrimSpace(row[talkColTrack]),
		})
	}
	return talks, nil
}

// attendee header variants seen in practice; matched case-sensitively
// against the first row, first hit wins.
var (
	attendeeNameHeaders = []string{"Name", "name", "Full Name", "Attendee"}
	attendeeOrgHeaders  = []string{"Organization", "organization", "Institution", "Affiliation"}
)

// LoadAttendeesCSV reads attendees from a headered CSV. A missing file is
// not an error: the attendee list is optional input.
func LoadAttendeesCSV(path string) ([]Attendee, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open attendees csv: %v", ErrRoster, err)
	}
	defer f.Close()

	r := csv.NewReader(stripBOM(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse attendees csv: %v", ErrRoster, err)
	}
	nameIdx := findColumn(header, attendeeNameHeaders)
	orgIdx := findColumn(header, attendeeOrgHeaders)
	if nameIdx < 0 {
		return nil, fmt.Errorf("%w: attendees csv has no name column (header %v)", ErrRoster, header)
	}

	var attendees []Attendee
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parse attendees csv: %v", ErrRoster, err)
		}
		if nameIdx >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[nameIdx])
		if name == "" {
			continue
		}
		org := ""
		if orgIdx >= 0 && orgIdx < len(row) {
			org = strings.TrimSpace(row[orgIdx])
		}
		attendees = append(attendees, Attendee{Name: name, Organization: org})
	}
	return attendees, nil
}

func findColumn(header []string, candidates []string) int {
	for _, want := range candidates {
		for i, h := range header {
			if strings.TrimSpace(h) == want {
				return i
			}
		}
	}
	return -1
}

// stripBOM removes a leading UTF-8 byte order mark, which sheet exports
// regularly prepend.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, _ := io.ReadFull(r, buf)
	if n == 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
