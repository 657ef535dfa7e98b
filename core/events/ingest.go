package events

const (
	// NameIngestStart identifies an upload accepted for processing.
	NameIngestStart Name = "ingest_start"
	// NameIngestSuccess identifies a document whose text was extracted.
	NameIngestSuccess Name = "ingest_success"
	// NameIngestFail identifies a rejected or unreadable upload.
	NameIngestFail Name = "ingest_fail"
)

type IngestStart struct{ Base }

func NewIngestStart(file string, size int64) IngestStart {
	return IngestStart{Base: NewBase(NameIngestStart, Payload{"file": file, "size": size})}
}

type IngestSuccess struct{ Base }

func NewIngestSuccess(title string, chaptersCount int) IngestSuccess {
	return IngestSuccess{Base: NewBase(NameIngestSuccess, Payload{"title": title, "chapters_count": chaptersCount})}
}

type IngestFail struct{ Base }

func NewIngestFail(file string, message string) IngestFail {
	return IngestFail{Base: NewBase(NameIngestFail, Payload{"error": message, "file": file})}
}
