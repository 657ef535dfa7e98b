// Package events defines the closed telemetry vocabulary recorded by the
// lesson core.
//
// Event names are grouped by the subsystem that emits them:
//
//   - lesson_*: playback session lifecycle.
//   - audio_gen_fail: a generation cycle (script or audio) failed.
//   - ingest_*: document ingestion.
//   - quiz_*: quiz session lifecycle.
//   - paywall_*, conversion: plan gating.
//
// lesson events
//
//   - LessonPlay (lesson_play): playback started or resumed; module_id.
//   - LessonPause (lesson_pause): playback paused; module_id, time in seconds.
//   - LessonComplete (lesson_complete): the resource played to the end;
//     module_id.
//   - AudioGenFail (audio_gen_fail): generation failed; error carries the raw
//     error message, module_id when an item was selected.
//
// ingest events
//
//   - IngestStart (ingest_start): upload accepted for processing; file, size.
//   - IngestSuccess (ingest_success): text extracted; title, chapters_count.
//   - IngestFail (ingest_fail): validation or extraction failed; error, file.
//
// quiz events
//
//   - QuizStart (quiz_start): questions generated; question_count.
//   - QuizComplete (quiz_complete): last question answered; score, total,
//     accuracy.
//
// paywall events
//
//   - PaywallTrigger (paywall_trigger): a gated feature was requested;
//     feature, current_plan.
//   - Conversion (conversion): plan upgraded; plan, trigger.
//   - PaywallDismiss (paywall_dismiss): paywall closed without upgrading;
//     trigger.
package events
