/*
go-posegame is a pose matching game for single board computers with a camera
and an AI accelerator.  The player is shown a target pose, such as hands up,
a T-pose or a squat, and scores points by holding it before the round timer
runs out.

The game core is independent of any hardware:

  - pose classifies a frame of body keypoints into the poses it satisfies
  - tracker confirms a pose once it has been held and smooths keypoints
  - game runs timed rounds and serializes frames and clock ticks in a Session
  - config loads game settings from a JSON file

Adapters connect the core to the outside world:

  - detect estimates keypoints on the Rockchip NPU with go-rknnlite
  - source reads keypoints emitted as JSON lines by the Hailo rpicam-hello pipeline
  - render draws the skeleton and game overlay with GoCV
  - server streams the annotated video, round state and events over HTTP

See the example subdirectory for the camera game and a headless replay tool.
*/
package posegame
